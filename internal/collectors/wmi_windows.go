//go:build windows

package collectors

import (
	"context"
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/breeze-rmm/patchaudit/internal/logging"
	"github.com/breeze-rmm/patchaudit/internal/patching"
)

const hotfixQuery = "SELECT HotFixID FROM Win32_QuickFixEngineering"

// WMISource lists hotfixes from the Win32_QuickFixEngineering class.
type WMISource struct{}

func NewWMISource() *WMISource {
	return &WMISource{}
}

func (s *WMISource) Name() string {
	return "wmi"
}

func (s *WMISource) InstalledPatchIDs(ctx context.Context) (patching.PatchSet, error) {
	log := logging.FromContext(ctx)
	set := patching.NewPatchSet()

	err := withCOMObject(ctx, "WbemScripting.SWbemLocator", func(locator *ole.IDispatch) error {
		// ConnectServer with no arguments binds to ROOT\CIMV2 on the local machine.
		serviceVar, err := oleutil.CallMethod(locator, "ConnectServer")
		if err != nil {
			return fmt.Errorf("wmi connectserver: %w", err)
		}
		defer serviceVar.Clear()

		service := serviceVar.ToIDispatch()
		if service == nil {
			return fmt.Errorf("wmi connectserver: nil service")
		}

		log.Debug("running WMI query", "query", hotfixQuery)
		resultVar, err := oleutil.CallMethod(service, "ExecQuery", hotfixQuery)
		if err != nil {
			return fmt.Errorf("wmi query: %w", err)
		}
		defer resultVar.Clear()

		result := resultVar.ToIDispatch()
		if result == nil {
			return fmt.Errorf("wmi query: nil result")
		}

		return oleutil.ForEach(result, func(v *ole.VARIANT) error {
			item := v.ToIDispatch()
			if item == nil {
				return nil
			}
			defer item.Release()

			id, err := getStringProperty(item, "HotFixID")
			if err != nil {
				log.Debug("hotfix without HotFixID", logging.KeyError, err.Error())
				return nil
			}
			set.Add(id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

//go:build windows

package collectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/breeze-rmm/patchaudit/internal/logging"
	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// WUASource lists updates the Windows Update Agent reports as installed.
type WUASource struct {
	backoffs []time.Duration
}

func NewWUASource() *WUASource {
	return &WUASource{backoffs: []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}}
}

func (w *WUASource) Name() string {
	return "wua"
}

func (w *WUASource) InstalledPatchIDs(ctx context.Context) (patching.PatchSet, error) {
	set := patching.NewPatchSet()
	err := withCOMObject(ctx, "Microsoft.Update.Session", func(session *ole.IDispatch) error {
		return w.searchInstalled(ctx, session, set)
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (w *WUASource) searchInstalled(ctx context.Context, session *ole.IDispatch, set patching.PatchSet) error {
	searcherVar, err := oleutil.CallMethod(session, "CreateUpdateSearcher")
	if err != nil {
		return fmt.Errorf("create searcher failed: %w", err)
	}
	defer searcherVar.Clear()

	searcher := searcherVar.ToIDispatch()
	if searcher == nil {
		return fmt.Errorf("create searcher failed: nil searcher")
	}

	resultVar, err := w.callWithRetry(ctx, "Search", func() (*ole.VARIANT, error) {
		return oleutil.CallMethod(searcher, "Search", "IsInstalled=1")
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", describeCOMError(err))
	}
	defer resultVar.Clear()

	result := resultVar.ToIDispatch()
	if result == nil {
		return fmt.Errorf("search failed: nil result")
	}

	updatesVar, err := oleutil.GetProperty(result, "Updates")
	if err != nil {
		return fmt.Errorf("updates collection failed: %w", err)
	}
	defer updatesVar.Clear()

	updates := updatesVar.ToIDispatch()
	if updates == nil {
		return fmt.Errorf("updates collection missing")
	}

	count, err := getIntProperty(updates, "Count")
	if err != nil {
		return fmt.Errorf("updates count failed: %w", err)
	}

	for i := 0; i < count; i++ {
		itemVar, err := oleutil.CallMethod(updates, "Item", i)
		if err != nil {
			continue
		}
		update := itemVar.ToIDispatch()
		if update != nil {
			set.Add(kbArticleIDs(update)...)
		}
		itemVar.Clear()
	}
	return nil
}

// kbArticleIDs returns the KB numbers of an update, prefixed with "KB".
func kbArticleIDs(update *ole.IDispatch) []string {
	kbIDsVar, err := oleutil.GetProperty(update, "KBArticleIDs")
	if err != nil {
		return nil
	}
	defer kbIDsVar.Clear()

	kbIDs := kbIDsVar.ToIDispatch()
	if kbIDs == nil {
		return nil
	}

	count, err := getIntProperty(kbIDs, "Count")
	if err != nil {
		return nil
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		itemVar, err := oleutil.CallMethod(kbIDs, "Item", i)
		if err != nil {
			continue
		}
		kb := strings.TrimSpace(itemVar.ToString())
		itemVar.Clear()
		if kb != "" && !strings.HasPrefix(kb, "KB") {
			kb = "KB" + kb
		}
		ids = append(ids, kb)
	}
	return ids
}

// callWithRetry retries a WUA call while another client holds the agent
// (WU_E_OPERATIONINPROGRESS), backing off between attempts.
func (w *WUASource) callWithRetry(ctx context.Context, operation string, fn func() (*ole.VARIANT, error)) (*ole.VARIANT, error) {
	log := logging.FromContext(ctx)

	result, err := fn()
	if err == nil {
		return result, nil
	}

	for attempt, backoff := range w.backoffs {
		if !retryable(err) {
			return nil, err
		}

		log.Warn("WUA operation in progress, retrying",
			"operation", operation, "attempt", attempt+2, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}

		result, err = fn()
		if err == nil {
			return result, nil
		}
	}

	return nil, fmt.Errorf("%s failed after retries: %w", operation, err)
}

func retryable(err error) bool {
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return isOperationInProgress(uint32(oleErr.Code()))
	}
	return isOperationInProgressError(err.Error())
}

// describeCOMError adds the WUA name of an HRESULT to err.
func describeCOMError(err error) error {
	var oleErr *ole.OleError
	if !errors.As(err, &oleErr) {
		return err
	}
	return fmt.Errorf("%s: %w", formatHResult(uint32(oleErr.Code())), err)
}

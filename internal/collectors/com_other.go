//go:build !windows

package collectors

import (
	"context"
	"errors"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// ErrUnsupportedPlatform is returned by sources that need Windows.
var ErrUnsupportedPlatform = errors.New("source requires Windows")

type WMISource struct{}

func NewWMISource() *WMISource { return &WMISource{} }

func (s *WMISource) Name() string { return "wmi" }

func (s *WMISource) InstalledPatchIDs(context.Context) (patching.PatchSet, error) {
	return nil, ErrUnsupportedPlatform
}

type WUASource struct{}

func NewWUASource() *WUASource { return &WUASource{} }

func (w *WUASource) Name() string { return "wua" }

func (w *WUASource) InstalledPatchIDs(context.Context) (patching.PatchSet, error) {
	return nil, ErrUnsupportedPlatform
}

package patching

import (
	"context"
	"errors"
	"testing"
)

type fakeSource struct {
	name string
	ids  []string
	err  error
}

func (s fakeSource) Name() string { return s.name }

func (s fakeSource) InstalledPatchIDs(context.Context) (PatchSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return NewPatchSet(s.ids...), nil
}

func TestSourceSetUnionsSources(t *testing.T) {
	set := NewSourceSet(
		fakeSource{name: "wmi", ids: []string{"KB1", "KB2"}},
		fakeSource{name: "wua", ids: []string{"KB2", "KB3"}},
	)

	got, err := set.InstalledPatchIDs(context.Background())
	if err != nil {
		t.Fatalf("InstalledPatchIDs: %v", err)
	}
	if len(got) != 3 || !got.Has("KB1") || !got.Has("KB3") {
		t.Fatalf("expected union of both sources, got %v", got)
	}
}

func TestSourceSetToleratesPartialFailure(t *testing.T) {
	set := NewSourceSet(
		fakeSource{name: "wmi", err: errors.New("access denied")},
		fakeSource{name: "powershell", ids: []string{"KB1"}},
	)

	got, err := set.InstalledPatchIDs(context.Background())
	if err != nil {
		t.Fatalf("one healthy source should be enough: %v", err)
	}
	if !got.Has("KB1") {
		t.Fatalf("missing KB1: %v", got)
	}
}

func TestSourceSetAllFail(t *testing.T) {
	denied := errors.New("access denied")
	set := NewSourceSet(
		fakeSource{name: "wmi", err: denied},
		fakeSource{name: "wmic", err: errors.New("not found")},
	)

	_, err := set.InstalledPatchIDs(context.Background())
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	if !errors.Is(err, denied) {
		t.Fatalf("joined error should wrap source errors: %v", err)
	}
	var srcErr *SourceError
	if !errors.As(err, &srcErr) || srcErr.Source != "wmi" {
		t.Fatalf("expected first SourceError to name wmi, got %v", err)
	}
}

func TestSourceSetEmpty(t *testing.T) {
	if _, err := NewSourceSet().InstalledPatchIDs(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestNewPatchSetTrims(t *testing.T) {
	set := NewPatchSet(" KB1\r", "", "  ", "KB2")
	if len(set) != 2 || !set.Has("KB1") || !set.Has("KB2") {
		t.Fatalf("unexpected set %v", set)
	}
}

package store

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/azrael-sim/azrael/internal/core/domain/entity"
)

func TestSQLiteLogPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "azrael.db")
	logger := log.New(io.Discard, "", 0)

	l1, err := OpenSQLiteLog(path, logger)
	if err != nil {
		t.Fatalf("unexpected error opening log: %v", err)
	}
	id, err := l1.Add(context.Background(), entity.Body{
		InvMass: 1, Orientation: mgl64.QuatIdent(), Scale: 1,
		Position: mgl64.Vec3{1, 2, 3},
		Shape:    entity.Sphere{Radius: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error adding body: %v", err)
	}
	if err := l1.Close(); err != nil {
		t.Fatalf("unexpected error closing log: %v", err)
	}

	l2, err := OpenSQLiteLog(path, logger)
	if err != nil {
		t.Fatalf("unexpected error reopening log: %v", err)
	}
	defer l2.Close()

	got, err := l2.Get(context.Background(), []entity.BodyID{id})
	if err != nil {
		t.Fatalf("unexpected error reading back: %v", err)
	}
	body, ok := got[id]
	if !ok {
		t.Fatalf("expected body %d to survive a reopen, got %+v", id, got)
	}
	if body.Position != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("unexpected position after reopen: %v", body.Position)
	}
	if body.Shape.(entity.Sphere).Radius != 4 {
		t.Fatalf("unexpected shape after reopen: %+v", body.Shape)
	}
}

func TestSQLiteLogRemoveMirrorsDeletion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "azrael.db")
	logger := log.New(io.Discard, "", 0)

	l, err := OpenSQLiteLog(path, logger)
	if err != nil {
		t.Fatalf("unexpected error opening log: %v", err)
	}
	id, _ := l.Add(context.Background(), entity.Body{Shape: entity.Empty{}})
	if err := l.Remove(context.Background(), []entity.BodyID{id}); err != nil {
		t.Fatalf("unexpected error removing body: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("unexpected error closing log: %v", err)
	}

	reopened, err := OpenSQLiteLog(path, logger)
	if err != nil {
		t.Fatalf("unexpected error reopening log: %v", err)
	}
	defer reopened.Close()

	got, _ := reopened.GetAll(context.Background())
	if _, ok := got[id]; ok {
		t.Fatalf("expected a removed body to stay gone after reopen, got %+v", got)
	}
}

func TestSQLiteLogOpenRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLiteLog("", log.New(io.Discard, "", 0)); err == nil {
		t.Fatalf("expected an error for an empty store path")
	}
}

package app

import (
	"context"
	"fmt"
	"log"
	"os/user"
	"strings"

	"dailyvision/internal/config"
	"dailyvision/internal/db"
	"dailyvision/internal/engine"
	"dailyvision/internal/repo"
)

// DefaultUserID is used by the CLI when no --user is given and the OS user
// cannot be resolved.
const DefaultUserID = "local-user"

// Workspace bundles what a command needs to run against one workspace.
type Workspace struct {
	Dir    string
	Config *config.Config
	Engine engine.Engine
	store  repo.Store
}

func (w *Workspace) Close() error {
	if w == nil || w.store == nil {
		return nil
	}
	return w.store.Close()
}

// OpenWorkspace opens (and migrates) the workspace database and loads its
// config, falling back to defaults when dailyvision.yml is absent.
func OpenWorkspace(ctx context.Context, dir string, logger *log.Logger) (*Workspace, error) {
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	store := repo.NewSQLite(conn)
	if err := store.Init(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Workspace{
		Dir:    dir,
		Config: cfg,
		Engine: engine.New(store, cfg, logger),
		store:  store,
	}, nil
}

// ResolveUser picks the user id: explicit override first, then the OS user.
func ResolveUser(override string) string {
	if id := strings.TrimSpace(override); id != "" {
		return id
	}
	if u, err := user.Current(); err == nil && strings.TrimSpace(u.Username) != "" {
		return u.Username
	}
	return DefaultUserID
}

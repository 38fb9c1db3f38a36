package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/MikhailRaia/files-sharing/internal/server"
	"github.com/MikhailRaia/files-sharing/internal/storage"
	"github.com/rs/zerolog/log"
)

// Directory lists the users and groups created at startup.
type Directory struct {
	Users  []DirectoryUser  `json:"users"`
	Groups []DirectoryGroup `json:"groups"`
}

type DirectoryUser struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type DirectoryGroup struct {
	GID         string   `json:"gid"`
	DisplayName string   `json:"display_name"`
	Members     []string `json:"members"`
}

// LoadDirectory reads a Directory from a JSON file.
func LoadDirectory(path string) (Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Directory{}, fmt.Errorf("read seed file: %w", err)
	}

	var dir Directory
	if err := json.Unmarshal(data, &dir); err != nil {
		return Directory{}, fmt.Errorf("parse seed file: %w", err)
	}
	return dir, nil
}

// Seed creates the users and groups of dir that do not exist yet and adds
// the listed members. Memberships go through the group manager, so joins
// propagate shares like any other.
func Seed(ctx context.Context, srv *server.Server, dir Directory) error {
	for _, u := range dir.Users {
		_, err := srv.Users.CreateUser(ctx, u.UID, u.DisplayName, u.Password)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("seed user %q: %w", u.UID, err)
		}
	}

	for _, g := range dir.Groups {
		_, err := srv.Groups.CreateGroup(ctx, g.GID, g.DisplayName)
		if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return fmt.Errorf("seed group %q: %w", g.GID, err)
		}
		for _, uid := range g.Members {
			if err := srv.Groups.AddUser(ctx, g.GID, uid); err != nil {
				return fmt.Errorf("seed member %q of %q: %w", uid, g.GID, err)
			}
		}
	}

	log.Info().Int("users", len(dir.Users)).Int("groups", len(dir.Groups)).Msg("Directory seeded")
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/assignwork/assignwork/internal/core/events"
	"github.com/assignwork/assignwork/internal/oauth"
	"github.com/assignwork/assignwork/internal/user"
	userstore "github.com/assignwork/assignwork/internal/user/postgres"
	"github.com/assignwork/assignwork/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with baseline roles and permissions",
	Long:  `Seed the baseline roles, permissions and grants. Safe to run repeatedly.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGormDB(sqlDB)
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		roles := []struct {
			Name string
			Desc string
		}{
			{"admin", "full administrative access"},
			{"user", "regular member"},
		}
		for _, r := range roles {
			if err := db.Exec(
				"INSERT INTO roles (name, description, created_at, updated_at) VALUES (?, ?, now(), now()) ON CONFLICT (name) DO NOTHING",
				r.Name, r.Desc).Error; err != nil {
				log.Fatalf("failed to seed role %s: %v", r.Name, err)
			}
		}

		permissions := []struct {
			Resource string
			Action   string
			Desc     string
		}{
			{"tasks", "read", "view tasks"},
			{"tasks", "write", "create and update tasks"},
			{"tasks", "delete", "delete tasks"},
			{"rbac", "manage", "manage roles, permissions and users"},
		}
		for _, p := range permissions {
			if err := db.Exec(
				"INSERT INTO permissions (resource, action, description, created_at) VALUES (?, ?, ?, now()) ON CONFLICT (resource, action) DO NOTHING",
				p.Resource, p.Action, p.Desc).Error; err != nil {
				log.Fatalf("failed to seed permission %s:%s: %v", p.Resource, p.Action, err)
			}
		}

		grants := map[string][]string{
			"admin": {"tasks:read", "tasks:write", "tasks:delete", "rbac:manage"},
			"user":  {"tasks:read", "tasks:write"},
		}
		for roleName, keys := range grants {
			for _, key := range keys {
				parts := strings.SplitN(key, ":", 2)
				if err := db.Exec(`
					INSERT INTO role_permissions (role_id, permission_id, granted_at)
					SELECT r.id, p.id, now()
					FROM roles r, permissions p
					WHERE r.name = ? AND p.resource = ? AND p.action = ?
					ON CONFLICT DO NOTHING`,
					roleName, parts[0], parts[1]).Error; err != nil {
					log.Fatalf("failed to grant %s to %s: %v", key, roleName, err)
				}
			}
		}
		fmt.Println("Seeded baseline roles, permissions and grants")

		if seedAdminEmail == "" {
			return
		}
		if seedAdminUsername == "" {
			seedAdminUsername = strings.SplitN(seedAdminEmail, "@", 2)[0]
		}

		ctx := context.Background()
		lg := logger.L()
		users := user.NewService(userstore.NewRepository(db), events.NewEventBus(lg), lg)

		u, err := users.ProvisionUserFromSSO(ctx, oauth.Identity{
			Email:    seedAdminEmail,
			Username: seedAdminUsername,
		})
		if err != nil {
			log.Fatalf("failed to provision admin user: %v", err)
		}

		if err := db.Exec(`
			INSERT INTO user_roles (user_id, role_id, assigned_at)
			SELECT ?, r.id, now() FROM roles r WHERE r.name = 'admin'
			ON CONFLICT DO NOTHING`, u.ID).Error; err != nil {
			log.Fatalf("failed to assign admin role: %v", err)
		}

		fmt.Println("Provisioned admin user:", seedAdminEmail)
	},
}

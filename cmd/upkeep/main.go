package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upkeep/internal/app"
	"upkeep/internal/config"
	"upkeep/internal/db"
	"upkeep/internal/domain"
	"upkeep/internal/engine"
	"upkeep/internal/migrate"
	"upkeep/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "upkeep",
	Short: "Upkeep CLI",
	Long: `Upkeep tracks the recurring maintenance of community facilities.
Organizations own locations; locations carry typed assets (a boiler room, a
playground); attaching an asset type materializes its checklist template into
work areas and work items; updates with review dates drive the outstanding
and due-soon dashboards.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("UPKEEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Int64("actor", 0, "acting user id recorded in the audit log")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func registerCommands() {
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(orgCmd())
	rootCmd.AddCommand(locationCmd())
	rootCmd.AddCommand(assetTypeCmd())
	rootCmd.AddCommand(assetCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func seedCmd() *cobra.Command {
	var orgName, adminEmail, adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision the workspace: organization, admin account, template catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				org, admin, err := app.Bootstrap(ctx, e, app.BootstrapOptions{
					OrgName:       orgName,
					AdminEmail:    adminEmail,
					AdminPassword: adminPassword,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"database":     db.Path(viper.GetString("workspace")),
					"organization": org,
					"admin":        admin,
				})
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "organization name")
	cmd.Flags().StringVar(&adminEmail, "admin-email", "", "admin email")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "", "admin password (required on first run)")
	return cmd
}

func orgCmd() *cobra.Command {
	org := &cobra.Command{Use: "org", Short: "Manage organizations"}
	org.AddCommand(orgCreateCmd())
	org.AddCommand(orgListCmd())
	org.AddCommand(orgShowCmd())
	org.AddCommand(orgContactCmd())
	return org
}

func orgCreateCmd() *cobra.Command {
	var name, address string
	var parentID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var parent *int64
				if parentID != 0 {
					parent = &parentID
				}
				o, err := e.CreateOrganization(ctx, name, address, parent, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "organization name")
	cmd.Flags().StringVar(&address, "address", "", "postal address")
	cmd.Flags().Int64Var(&parentID, "parent", 0, "parent organization id")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func orgListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organizations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListOrganizations(ctx, 0, 0)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Address", "Parent"})
				for _, o := range items {
					parent := ""
					if o.ParentID != nil {
						parent = fmt.Sprintf("%d", *o.ParentID)
					}
					tw.AppendRow(table.Row{o.ID, o.Name, o.Address, parent})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func orgShowCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.GetOrganization(ctx, id)
				if err != nil {
					return err
				}
				total, err := e.Repo.CountOrgItems(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(struct {
						domain.Organization
						WorkItems int `json:"work_items"`
					}{o, total})
				}
				if err := printJSONOrTable(o); err != nil {
					return err
				}
				fmt.Printf("work items: %d\n", total)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "organization id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func orgContactCmd() *cobra.Command {
	contact := &cobra.Command{Use: "contact", Short: "Manage key contacts"}

	var orgID int64
	var name, title, email, phone string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add key contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddKeyContact(ctx, domain.KeyContact{
					OrganizationID: orgID,
					Name:           name,
					Title:          title,
					Email:          email,
					Phone:          phone,
				}, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	add.Flags().Int64Var(&orgID, "org", 0, "organization id")
	add.Flags().StringVar(&name, "name", "", "contact name")
	add.Flags().StringVar(&title, "title", "", "role or title")
	add.Flags().StringVar(&email, "email", "", "email")
	add.Flags().StringVar(&phone, "phone", "", "phone")
	_ = add.MarkFlagRequired("org")
	_ = add.MarkFlagRequired("name")

	var listOrgID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List key contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListKeyContacts(ctx, listOrgID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().Int64Var(&listOrgID, "org", 0, "organization id")
	_ = list.MarkFlagRequired("org")

	contact.AddCommand(add, list)
	return contact
}

func locationCmd() *cobra.Command {
	loc := &cobra.Command{Use: "location", Short: "Manage locations"}

	var orgID int64
	var name, address string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.CreateLocation(ctx, orgID, name, address, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	create.Flags().Int64Var(&orgID, "org", 0, "organization id")
	create.Flags().StringVar(&name, "name", "", "location name")
	create.Flags().StringVar(&address, "address", "", "postal address")
	_ = create.MarkFlagRequired("org")
	_ = create.MarkFlagRequired("name")

	var listOrgID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListLocations(ctx, listOrgID, 0, 0)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Address"})
				for _, l := range items {
					tw.AppendRow(table.Row{l.ID, l.Name, l.Address})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().Int64Var(&listOrgID, "org", 0, "organization id")
	_ = list.MarkFlagRequired("org")

	loc.AddCommand(create, list)
	return loc
}

func assetTypeCmd() *cobra.Command {
	at := &cobra.Command{Use: "asset-type", Short: "Manage the asset-type catalog"}

	var name, description, templateFile string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create asset type from a template file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(templateFile)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.CreateAssetType(ctx, name, description, string(data), viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "asset type name (unique)")
	create.Flags().StringVar(&description, "description", "", "description")
	create.Flags().StringVar(&templateFile, "file", "", "markdown template file")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("file")

	list := &cobra.Command{
		Use:   "list",
		Short: "List asset types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAssetTypes(ctx, 0, 0)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Description"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.ID, a.Name, a.Description})
				}
				tw.Render()
				return nil
			})
		},
	}

	var showID int64
	var showName string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show asset type with template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var a domain.AssetType
				var err error
				switch {
				case showName != "":
					a, err = e.Repo.GetAssetTypeByName(ctx, showName)
				case showID != 0:
					a, err = e.Repo.GetAssetType(ctx, showID)
				default:
					return errors.New("either --id or --name is required")
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	show.Flags().Int64Var(&showID, "id", 0, "asset type id")
	show.Flags().StringVar(&showName, "name", "", "asset type name")

	at.AddCommand(create, list, show)
	return at
}

func assetCmd() *cobra.Command {
	asset := &cobra.Command{Use: "asset", Short: "Manage location assets"}

	var locationID, assetTypeID int64
	attach := &cobra.Command{
		Use:   "attach",
		Short: "Attach an asset type to a location and generate its checklist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AttachAsset(ctx, locationID, assetTypeID, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("asset %d attached to location %d\n", res.Asset.ID, locationID)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Area", "Items"})
				for _, gen := range res.Areas {
					tw.AppendRow(table.Row{gen.Area.Statement, len(gen.Items)})
				}
				tw.Render()
				return nil
			})
		},
	}
	attach.Flags().Int64Var(&locationID, "location", 0, "location id")
	attach.Flags().Int64Var(&assetTypeID, "type", 0, "asset type id")
	_ = attach.MarkFlagRequired("location")
	_ = attach.MarkFlagRequired("type")

	var listLocation int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List assets at a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAssetsForLocation(ctx, listLocation)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().Int64Var(&listLocation, "location", 0, "location id")
	_ = list.MarkFlagRequired("location")

	asset.AddCommand(attach, list)
	return asset
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage accounts"}

	var orgID int64
	var email, password, fullName, role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.RegisterUser(ctx, orgID, email, password, fullName, role, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	create.Flags().Int64Var(&orgID, "org", 0, "organization id")
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "password")
	create.Flags().StringVar(&fullName, "full-name", "", "display name")
	create.Flags().StringVar(&role, "role", domain.RoleViewer, "role: admin, manager or viewer")
	_ = create.MarkFlagRequired("org")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	var listOrgID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List users in an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListUsers(ctx, listOrgID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Role", "Active"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Role, u.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().Int64Var(&listOrgID, "org", 0, "organization id")
	_ = list.MarkFlagRequired("org")

	var roleUserID int64
	var newRole string
	setRole := &cobra.Command{
		Use:   "set-role",
		Short: "Change a user's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetUserRole(ctx, roleUserID, newRole, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	setRole.Flags().Int64Var(&roleUserID, "id", 0, "user id")
	setRole.Flags().StringVar(&newRole, "role", "", "new role")
	_ = setRole.MarkFlagRequired("id")
	_ = setRole.MarkFlagRequired("role")

	var activeUserID int64
	var active bool
	setActive := &cobra.Command{
		Use:   "set-active",
		Short: "Enable or disable an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.SetUserActive(ctx, activeUserID, active, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	setActive.Flags().Int64Var(&activeUserID, "id", 0, "user id")
	setActive.Flags().BoolVar(&active, "active", true, "active state")
	_ = setActive.MarkFlagRequired("id")

	user.AddCommand(create, list, setRole, setActive)
	return user
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}

	var userID int64
	var name string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an API key (plaintext printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				k, plaintext, err := e.IssueAPIKey(ctx, userID, name, viper.GetInt64("actor"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"id":   k.ID,
					"key":  plaintext,
					"name": k.Name,
				})
			})
		},
	}
	issue.Flags().Int64Var(&userID, "user", 0, "user id")
	issue.Flags().StringVar(&name, "name", "", "key label")
	_ = issue.MarkFlagRequired("user")

	var listUserID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAPIKeys(ctx, listUserID)
				if err != nil {
					return err
				}
				for i := range items {
					items[i].KeyHash = ""
				}
				return printJSONOrTable(items)
			})
		},
	}
	list.Flags().Int64Var(&listUserID, "user", 0, "user id")
	_ = list.MarkFlagRequired("user")

	var revokeID string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeAPIKey(ctx, revokeID, viper.GetInt64("actor"))
			})
		},
	}
	revoke.Flags().StringVar(&revokeID, "id", "", "key id")
	_ = revoke.MarkFlagRequired("id")

	key.AddCommand(issue, list, revoke)
	return key
}

func dashboardCmd() *cobra.Command {
	dash := &cobra.Command{Use: "dashboard", Short: "Review dashboards"}

	var orgID int64
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Headline counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.DashboardStats(ctx, orgID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	stats.Flags().Int64Var(&orgID, "org", 0, "organization id")
	_ = stats.MarkFlagRequired("org")

	outstanding := dashboardListCmd("outstanding", "Items needing attention",
		func(ctx context.Context, e engine.Engine, orgID int64) ([]domain.DashboardItem, error) {
			return e.DashboardOutstanding(ctx, orgID)
		})
	dueSoon := dashboardListCmd("due-soon", "Items with a review date in the next 30 days",
		func(ctx context.Context, e engine.Engine, orgID int64) ([]domain.DashboardItem, error) {
			return e.DashboardDueSoon(ctx, orgID)
		})

	dash.AddCommand(stats, outstanding, dueSoon)
	return dash
}

func dashboardListCmd(use, short string, fetch func(context.Context, engine.Engine, int64) ([]domain.DashboardItem, error)) *cobra.Command {
	var orgID int64
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := fetch(ctx, e, orgID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Item", "Area", "Location", "Days since update"})
				for _, it := range items {
					days := "-"
					if it.DaysSinceUpdate != nil {
						days = fmt.Sprintf("%d", *it.DaysSinceUpdate)
					}
					tw.AppendRow(table.Row{it.ID, it.Statement, it.WorkAreaStatement, it.LocationName, days})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&orgID, "org", 0, "organization id")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Audit log"}

	var orgID int64
	var n int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListRecentEvents(ctx, orgID, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	tail.Flags().Int64Var(&orgID, "org", 0, "organization id")
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	_ = tail.MarkFlagRequired("org")

	logRoot.AddCommand(tail)
	return logRoot
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("UPKEEP_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("UPKEEP_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(cmd.Context(), e)
			if v, err := migrate.Version(conn); err == nil {
				fmt.Printf("Schema version %d\n", v)
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Upkeep API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

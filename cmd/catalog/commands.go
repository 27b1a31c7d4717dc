package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/cache"
	catalogdomain "github.com/smallbiznis/catalog/internal/catalog/domain"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	typeservice "github.com/smallbiznis/catalog/internal/catalogtype/service"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/migration"
	"github.com/smallbiznis/catalog/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				conn *gorm.DB
				cfg  config.Config
				log  *zap.Logger
			)
			return runApp(cmd, []fx.Option{infrastructure(), fx.Populate(&conn, &cfg, &log)}, func(ctx context.Context) error {
				if err := migration.Apply(ctx, conn, cfg.DBType); err != nil {
					return report(cmd, err)
				}
				log.Info("schema up to date", zap.String("dialect", cfg.DBType))
				return nil
			})
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo taxonomy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				conn        *gorm.DB
				node        *snowflake.Node
				clk         clock.Clock
				invalidator cache.Invalidator
				types       cache.TypeResolverCache
			)
			return withDomain(cmd, func(ctx context.Context) error {
				result, err := seed.EnsureFixtures(ctx, conn, node, clk.Now())
				if err != nil {
					return err
				}
				types.Invalidate()
				if err := invalidator.InvalidateTags(ctx,
					catalogdomain.TagCatalog,
					catalogdomain.TagCatalogTree,
					typeservice.TagCatalogType,
					typeservice.TagCatalogTypeList,
				); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			}, &conn, &node, &clk, &invalidator, &types)
		},
	}
}

func newTypesCommand() *cobra.Command {
	var (
		req             typedomain.ListRequest
		includeDisabled bool
	)
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List catalog types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if includeDisabled {
				req.EnabledOnly = boolPtr(false)
			}
			var svc typedomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.List(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Keyword, "keyword", "", "match name or code")
	flags.BoolVar(&includeDisabled, "include-disabled", false, "include disabled types")
	flags.BoolVar(&req.IncludeCatalogCount, "catalog-count", false, "count catalogs per type")
	flags.StringVar(&req.OrderBy, "order-by", "", "name, code, createTime or updateTime")
	flags.StringVar(&req.OrderDir, "order-dir", "", "ASC or DESC")
	flags.IntVar(&req.Page, "page", 0, "1-based page number")
	flags.IntVar(&req.PageSize, "page-size", 0, "rows per page")
	return cmd
}

func newTypeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type",
		Short: "Manage a single catalog type",
	}
	cmd.AddCommand(newTypeCreateCommand(), newTypeGetCommand(), newTypeUpdateCommand(), newTypeDeleteCommand())
	return cmd
}

func newTypeCreateCommand() *cobra.Command {
	var (
		req         typedomain.CreateRequest
		description string
		disabled    bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a catalog type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if disabled {
				req.Enabled = boolPtr(false)
			}
			var svc typedomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Create(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Code, "code", "", "type code, derived from the name when omitted")
	flags.StringVar(&req.Name, "name", "", "display name")
	flags.StringVar(&description, "description", "", "description")
	flags.BoolVar(&disabled, "disabled", false, "create the type disabled")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newTypeGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a catalog type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc typedomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
}

func newTypeUpdateCommand() *cobra.Command {
	var name, description string
	var enabled bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a catalog type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := typedomain.UpdateRequest{ID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("enabled") {
				req.Enabled = &enabled
			}
			var svc typedomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Update(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "display name")
	flags.StringVar(&description, "description", "", "description")
	flags.BoolVar(&enabled, "enabled", true, "enable or disable the type")
	return cmd
}

func newTypeDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an unused catalog type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc typedomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				if err := svc.Delete(ctx, args[0]); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}, &svc)
		},
	}
}

func newListCommand() *cobra.Command {
	var (
		req             catalogdomain.ListRequest
		parentID        string
		allLevels       bool
		includeDisabled bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one level of catalogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case allLevels:
				req.ParentID = stringPtr("")
			case cmd.Flags().Changed("parent"):
				req.ParentID = &parentID
			}
			if includeDisabled {
				req.EnabledOnly = boolPtr(false)
			}
			var svc catalogdomain.QueryService
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.List(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.TypeCode, "type", "", "catalog type code")
	flags.StringVar(&parentID, "parent", "", "list the children of this catalog id")
	flags.BoolVar(&allLevels, "all-levels", false, "drop the parent filter")
	flags.StringVar(&req.Keyword, "keyword", "", "match name or description")
	flags.BoolVar(&includeDisabled, "include-disabled", false, "include disabled catalogs")
	flags.BoolVar(&req.IncludeChildrenCount, "children-count", false, "report children counts")
	flags.StringVar(&req.OrderBy, "order-by", "", "sortOrder, name, createTime or updateTime")
	flags.StringVar(&req.OrderDir, "order-dir", "", "ASC or DESC")
	flags.IntVar(&req.Page, "page", 0, "1-based page number")
	flags.IntVar(&req.PageSize, "page-size", 0, "rows per page")
	return cmd
}

func newDetailCommand() *cobra.Command {
	var (
		req             catalogdomain.DetailRequest
		includeDisabled bool
	)
	cmd := &cobra.Command{
		Use:   "detail <id>",
		Short: "Show a catalog with its neighbourhood",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.CatalogID = args[0]
			if includeDisabled {
				req.EnabledOnly = boolPtr(false)
			}
			var svc catalogdomain.QueryService
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Detail(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&req.IncludeAncestors, "ancestors", false, "include the ancestor chain")
	flags.BoolVar(&req.IncludeChildren, "children", false, "include direct children")
	flags.BoolVar(&req.IncludeSiblings, "siblings", false, "include siblings")
	flags.BoolVar(&includeDisabled, "include-disabled", false, "allow disabled catalogs")
	return cmd
}

func newTreeCommand() *cobra.Command {
	var (
		req             catalogdomain.TreeRequest
		includeDisabled bool
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Render nested catalogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if includeDisabled {
				req.EnabledOnly = boolPtr(false)
			}
			var svc catalogdomain.QueryService
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Tree(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.TypeID, "type-id", "", "restrict to one catalog type")
	flags.IntVar(&req.MaxLevel, "max-level", 0, "depth limit, 1 to 10")
	flags.BoolVar(&includeDisabled, "include-disabled", false, "include disabled catalogs")
	flags.BoolVar(&req.IncludeMetadata, "metadata", false, "include node metadata")
	return cmd
}

func newCreateCommand() *cobra.Command {
	var (
		req         catalogdomain.CreateRequest
		parentID    string
		description string
		thumb       string
		metadata    string
		sortOrder   int
		disabled    bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("parent") {
				req.ParentID = &parentID
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("thumb") {
				req.Thumb = &thumb
			}
			if flags.Changed("sort-order") {
				req.SortOrder = &sortOrder
			}
			if disabled {
				req.Enabled = boolPtr(false)
			}
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &req.Metadata); err != nil {
					return report(cmd, fmt.Errorf("metadata: %w", errInvalidMetadata))
				}
			}
			var svc catalogdomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Create(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.TypeID, "type-id", "", "catalog type id")
	flags.StringVar(&req.TypeCode, "type", "", "catalog type code")
	flags.StringVar(&parentID, "parent", "", "parent catalog id")
	flags.StringVar(&req.Name, "name", "", "display name")
	flags.StringVar(&description, "description", "", "description")
	flags.IntVar(&sortOrder, "sort-order", 0, "position among siblings, appended when omitted")
	flags.BoolVar(&disabled, "disabled", false, "create the catalog disabled")
	flags.StringVar(&metadata, "metadata", "", "JSON object")
	flags.StringVar(&thumb, "thumb", "", "thumbnail url")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUpdateCommand() *cobra.Command {
	var (
		name        string
		description string
		thumb       string
		metadata    string
		sortOrder   int
		enabled     bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update catalog attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := catalogdomain.UpdateRequest{ID: args[0]}
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("thumb") {
				req.Thumb = &thumb
			}
			if flags.Changed("sort-order") {
				req.SortOrder = &sortOrder
			}
			if flags.Changed("enabled") {
				req.Enabled = &enabled
			}
			if flags.Changed("metadata") {
				values := map[string]any{}
				if metadata != "" {
					if err := json.Unmarshal([]byte(metadata), &values); err != nil {
						return report(cmd, fmt.Errorf("metadata: %w", errInvalidMetadata))
					}
				}
				req.Metadata = &values
			}
			var svc catalogdomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Update(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "display name")
	flags.StringVar(&description, "description", "", "description")
	flags.IntVar(&sortOrder, "sort-order", 0, "position among siblings")
	flags.BoolVar(&enabled, "enabled", true, "enable or disable the catalog")
	flags.StringVar(&metadata, "metadata", "", "JSON object, empty clears it")
	flags.StringVar(&thumb, "thumb", "", "thumbnail url")
	return cmd
}

func newMoveCommand() *cobra.Command {
	var (
		parentID  string
		sortOrder int
	)
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Reattach a catalog and its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := catalogdomain.MoveRequest{ID: args[0]}
			if parentID != "" {
				req.ParentID = &parentID
			}
			if cmd.Flags().Changed("sort-order") {
				req.SortOrder = &sortOrder
			}
			var svc catalogdomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				resp, err := svc.Move(ctx, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			}, &svc)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&parentID, "parent", "", "new parent id, omit to move to the root")
	flags.IntVar(&sortOrder, "sort-order", 0, "position among the new siblings")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a catalog and its descendants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc catalogdomain.Service
			return withDomain(cmd, func(ctx context.Context) error {
				if err := svc.Delete(ctx, args[0]); err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}, &svc)
		},
	}
}

func boolPtr(v bool) *bool { return &v }

func stringPtr(v string) *string { return &v }

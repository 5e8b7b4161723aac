package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"rcaflow/internal/platform/config"
	"rcaflow/internal/platform/logger"
	"rcaflow/internal/tenancy"
	"rcaflow/internal/tenancy/models"
	tenancyservice "rcaflow/internal/tenancy/service"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
	"rcaflow/pkg/requestcontext"
)

// seedFile is the YAML layout read by the seed command. ${VAR} references
// are expanded from the environment before parsing so passwords can stay
// out of the file.
type seedFile struct {
	Companies []seedCompany `yaml:"companies"`
}

type seedCompany struct {
	Name  string     `yaml:"name"`
	Sites []seedSite `yaml:"sites"`
	Users []seedUser `yaml:"users"`
}

type seedSite struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

type seedUser struct {
	Email      string `yaml:"email"`
	Name       string `yaml:"name"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
	Permission string `yaml:"permission"`
	// Sites lists site names of the same company. Empty means every site.
	Sites []string `yaml:"sites"`
}

type seedResult struct {
	Created int
	Skipped int
}

// seeder is the slice of the tenancy service the seed needs.
type seeder interface {
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	CreateCompany(ctx context.Context, name string) (*models.Company, error)
	ListSites(ctx context.Context, companyID id.CompanyID) ([]*models.Site, error)
	CreateSite(ctx context.Context, cmd tenancyservice.CreateSiteCommand) (*models.Site, error)
	CreateUser(ctx context.Context, cmd tenancyservice.CreateUserCommand) (*models.UserProfile, error)
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Create companies, sites and users from a YAML file",
	Long: `Creates the companies, sites and users listed in the file. Entries that
already exist are skipped, so the command can run on every deploy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		seed, err := loadSeed(f)
		if err != nil {
			return err
		}

		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		log := logger.New(cfg.Log)
		ctx := cmd.Context()
		in, err := openInfra(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer in.close()
		auditor, err := newAuditPublisher(ctx, cfg, in, log)
		if err != nil {
			return err
		}
		defer auditor.Close()

		svc := tenancy.NewService(in.backend,
			tenancyservice.WithLogger(log),
			tenancyservice.WithAuditPublisher(auditor),
			tenancyservice.WithBcryptCost(cfg.Auth.BcryptCost),
		)
		res, err := applySeed(seedContext(ctx, time.Now()), svc, seed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seed done: %d created, %d already present\n", res.Created, res.Skipped)
		return nil
	},
}

func loadSeed(r io.Reader) (*seedFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(raw))))
	dec.KnownFields(true)
	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// seedContext acts as a platform operator outside of any request.
func seedContext(ctx context.Context, now time.Time) context.Context {
	ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{
		UserID:     id.NewUserID(),
		Name:       "seed",
		Role:       id.RoleSuperAdmin,
		Permission: id.PermissionValidator,
	})
	ctx = requestcontext.WithRequestID(ctx, "seed")
	return requestcontext.WithTime(ctx, now)
}

func applySeed(ctx context.Context, svc seeder, f *seedFile) (seedResult, error) {
	var res seedResult
	existing, err := svc.ListCompanies(ctx)
	if err != nil {
		return res, err
	}
	for _, sc := range f.Companies {
		company := findCompany(existing, sc.Name)
		if company == nil {
			if company, err = svc.CreateCompany(ctx, sc.Name); err != nil {
				return res, fmt.Errorf("company %q: %w", sc.Name, err)
			}
			res.Created++
		} else {
			res.Skipped++
		}

		sites, err := svc.ListSites(ctx, company.ID)
		if err != nil {
			return res, err
		}
		for _, ss := range sc.Sites {
			if findSite(sites, ss.Name) != nil {
				res.Skipped++
				continue
			}
			site, err := svc.CreateSite(ctx, tenancyservice.CreateSiteCommand{
				CompanyID: company.ID,
				Name:      ss.Name,
				Location:  ss.Location,
			})
			if err != nil {
				return res, fmt.Errorf("site %q: %w", ss.Name, err)
			}
			sites = append(sites, site)
			res.Created++
		}

		for _, su := range sc.Users {
			cmd, err := userCommand(company.ID, sites, su)
			if err != nil {
				return res, err
			}
			if _, err := svc.CreateUser(ctx, cmd); err != nil {
				if dErrors.HasCode(err, dErrors.CodeConflict) {
					res.Skipped++
					continue
				}
				return res, fmt.Errorf("user %q: %w", su.Email, err)
			}
			res.Created++
		}
	}
	return res, nil
}

func userCommand(companyID id.CompanyID, sites []*models.Site, su seedUser) (tenancyservice.CreateUserCommand, error) {
	cmd := tenancyservice.CreateUserCommand{
		Email:     su.Email,
		Name:      su.Name,
		Password:  su.Password,
		CompanyID: companyID,
	}
	var err error
	if su.Role != "" {
		if cmd.Role, err = id.ParseRole(su.Role); err != nil {
			return cmd, fmt.Errorf("user %q: %w", su.Email, err)
		}
	}
	if su.Permission != "" {
		if cmd.Permission, err = id.ParsePermissionLevel(su.Permission); err != nil {
			return cmd, fmt.Errorf("user %q: %w", su.Email, err)
		}
	}
	for _, name := range su.Sites {
		site := findSite(sites, name)
		if site == nil {
			return cmd, fmt.Errorf("user %q: unknown site %q", su.Email, name)
		}
		cmd.SiteIDs = append(cmd.SiteIDs, site.ID)
	}
	return cmd, nil
}

func findCompany(all []*models.Company, name string) *models.Company {
	for _, c := range all {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c
		}
	}
	return nil
}

func findSite(all []*models.Site, name string) *models.Site {
	for _, s := range all {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s
		}
	}
	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/jonathan/job-change-tracker/internal/db"
	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage tracked companies",
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked companies",
	Args:  cobra.NoArgs,
	RunE:  runCompaniesList,
}

var companiesAddCmd = &cobra.Command{
	Use:   "add NAME URL",
	Short: "Track a company, or update its LinkedIn URL",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompaniesAdd,
}

var companiesActivateCmd = &cobra.Command{
	Use:   "activate NAME",
	Short: "Resume scraping a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCompanyActive(cmd, args[0], true)
	},
}

var companiesDeactivateCmd = &cobra.Command{
	Use:   "deactivate NAME",
	Short: "Stop scraping a company; its recorded changes are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setCompanyActive(cmd, args[0], false)
	},
}

var companiesListAll bool

func init() {
	companiesListCmd.Flags().BoolVar(&companiesListAll, "all", false, "Include inactive companies")

	companiesCmd.AddCommand(companiesListCmd, companiesAddCmd, companiesActivateCmd, companiesDeactivateCmd)
	rootCmd.AddCommand(companiesCmd)
}

func runCompaniesList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	companies, err := database.ListCompanies(cmd.Context(), companiesListAll)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(companies) == 0 {
		fmt.Fprintln(out, "No companies.")
		return nil
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "NAME\tACTIVE\tURL")
	for _, c := range companies {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", c.Name, c.IsActive, deref(c.LinkedInURL))
	}
	return tw.Flush()
}

func runCompaniesAdd(cmd *cobra.Command, args []string) error {
	name, url := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
	if name == "" {
		return fmt.Errorf("company name is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	company, err := database.UpsertCompany(cmd.Context(), db.CompanyUpsert{Name: name, LinkedInURL: &url, IsActive: true})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s (%s)\n", company.Name, deref(company.LinkedInURL))
	return nil
}

func setCompanyActive(cmd *cobra.Command, name string, active bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SetCompanyActive(cmd.Context(), name, active); err != nil {
		return err
	}
	state := "inactive"
	if active {
		state = "active"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", name, state)
	return nil
}

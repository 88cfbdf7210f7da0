package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/servir/aces/export"
	"github.com/servir/aces/manuscript"
	"github.com/servir/aces/manuscript/validation"
)

func paperCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paper",
		Short: "Manuscript parsing and validation",
	}
	cmd.AddCommand(paperValidateCmd(flags), paperShowCmd())
	return cmd
}

func paperValidateCmd(flags *rootFlags) *cobra.Command {
	var (
		formatName   string
		requireORCID bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file.xml> [file.xml ...]",
		Short: "Run document integrity checks over JATS manuscripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}

			vcfg := validation.DefaultConfig()
			vcfg.DTDVersion = cfg.Paper.DTDVersion
			vcfg.RequireORCID = cfg.Paper.RequireORCID || requireORCID
			validator := validation.New(vcfg)

			failed := 0
			for _, path := range args {
				report, err := validateManuscript(validator, path)
				if err != nil {
					return err
				}
				if err := export.WriteValidationReport(os.Stdout, report, format); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				if !report.Valid {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d manuscripts failed validation", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", "markdown", "Report format (markdown, json, csv)")
	cmd.Flags().BoolVar(&requireORCID, "require-orcid", false, "Fail contributors without an ORCID")

	return cmd
}

func validateManuscript(validator *validation.Validator, path string) (*validation.Report, error) {
	doc, err := manuscript.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return validator.Validate(doc), nil
}

func paperShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <file.xml>",
		Short: "Print parsed bibliographic metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := manuscript.ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			meta := &doc.Article.Front.Meta
			fmt.Printf("Title:   %s\n", meta.Title)
			if doi := meta.DOI(); doi != "" {
				fmt.Printf("DOI:     %s\n", doi)
			}
			if doc.Article.DTDVersion != "" {
				fmt.Printf("DTD:     %s\n", doc.Article.DTDVersion)
			}

			contributors := meta.Contributors()
			if len(contributors) > 0 {
				fmt.Println("Authors:")
				for _, c := range contributors {
					line := "  " + c.Name.String()
					if orcid := c.ORCID(); orcid != "" {
						line += " (" + orcid + ")"
					}
					fmt.Println(line)
				}
			}

			if affs := meta.Affiliations(); len(affs) > 0 {
				fmt.Println("Affiliations:")
				for _, aff := range affs {
					fmt.Printf("  %s\n", aff.Institution)
				}
			}

			var keywords []string
			for _, g := range meta.KeywordGroups {
				keywords = append(keywords, g.Keywords...)
			}
			if len(keywords) > 0 {
				fmt.Printf("Keywords: %s\n", strings.Join(keywords, ", "))
			}

			fmt.Printf("References: %d\n", len(doc.Article.Back.RefList.Refs))
			return nil
		},
	}
}

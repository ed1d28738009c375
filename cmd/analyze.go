package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/urlrisk/internal/cache"
	"github.com/khanhnv2901/urlrisk/internal/checker"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Run all risk checks against a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		withML, _ := cmd.Flags().GetBool("with-ml")
		modelPath, _ := cmd.Flags().GetString("ml-model")
		if modelPath == "" {
			modelPath = viper.GetString("ml_model_path")
		}

		analyzer := checker.NewAnalyzer(checker.AnalyzerConfig{
			CheckTimeout: configuredTimeout(),
			EnableML:     withML,
			MLModelPath:  modelPath,
			Cache:        cache.New(configuredCacheTTL()),
			Logger:       logger,
		})

		report, err := analyzer.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printReport(report)
		return nil
	},
}

func printReport(report checker.Report) {
	fmt.Printf("%s %s\n", colorInfo("URL:"), report.URL)
	fmt.Printf("%s %d/100 (%s)\n", colorInfo("Risk score:"), report.RiskScore, formatLabelWithColor(report.Label))
	if len(report.Reasons) > 0 {
		fmt.Printf("%s %s\n", colorWarn("Reasons:"), strings.Join(report.Reasons, ", "))
	}

	if ssl := report.Results.SSL; ssl != nil {
		status := colorError("no")
		if ssl.HTTPSOK {
			status = colorSuccess("yes")
		}
		fmt.Printf("\n%s\n", colorInfo("TLS"))
		fmt.Printf("  HTTPS reachable: %s\n", status)
		if ssl.IssuerCN != "" {
			fmt.Printf("  Issuer: %s\n", ssl.IssuerCN)
		}
		if ssl.ExpiresOn != nil {
			fmt.Printf("  Expires: %s", ssl.ExpiresOn.Format("2006-01-02"))
			if ssl.DaysUntilExpiry != nil {
				fmt.Printf(" (%d days)", *ssl.DaysUntilExpiry)
			}
			fmt.Println()
		}
		for _, e := range ssl.Errors {
			fmt.Printf("  %s %s\n", colorError("!"), e)
		}
	}

	if w := report.Results.Whois; w != nil {
		fmt.Printf("\n%s\n", colorInfo("Registration"))
		fmt.Printf("  Domain: %s\n", w.Domain)
		if w.Registrar != "" {
			fmt.Printf("  Registrar: %s\n", w.Registrar)
		}
		if w.AgeDays != nil {
			fmt.Printf("  Age: %d days\n", *w.AgeDays)
		}
		fmt.Printf("  Classification: %s (score %d)\n", formatLabelWithColor(w.Classification), w.RiskScore)
		for _, f := range w.RiskFactors {
			fmt.Printf("  - %s\n", f)
		}
	}

	if idn := report.Results.IDN; idn != nil {
		fmt.Printf("\n%s\n", colorInfo("Unicode/IDN"))
		fmt.Printf("  Legibility score: %d/100\n", idn.ASCIIScore)
		if idn.IsIDN {
			fmt.Printf("  %s IDN domain (punycode: %s)\n", colorWarn("!"), idn.Punycode)
		}
		if idn.MixedConfusableScripts {
			fmt.Printf("  %s Mixed confusable scripts: %s\n", colorError("!"), strings.Join(idn.Scripts, ", "))
		}
		if idn.HomographDetection.Found {
			fmt.Printf("  %s Possible homograph pattern (%d found)\n", colorError("!"), idn.HomographDetection.Count)
		}
	}

	if ml := report.Results.ML; ml != nil {
		fmt.Printf("\n%s\n", colorInfo("ML classifier"))
		fmt.Printf("  Score: %d/100 (%s)\n", ml.Score, formatLabelWithColor(ml.Label))
		if ml.OriginalMLScore != nil {
			fmt.Printf("  %s allowlisted domain, original score %d\n", colorWarn("~"), *ml.OriginalMLScore)
		}
	}
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "Emit the full report as JSON")
	analyzeCmd.Flags().Bool("with-ml", false, "Include the ML classifier signal")
	analyzeCmd.Flags().String("ml-model", "", "Path to the ML model artifact (default from config)")
}

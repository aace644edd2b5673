package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/landerd/landerd/internal/cloak"
	"github.com/landerd/landerd/internal/geo"
)

var testIPUserAgent string

var testIPCmd = &cobra.Command{
	Use:   "test-ip <ip>",
	Short: "Classify an IP address offline",
	Long: `Run the cloaking classifier against an IP (and optionally a
user agent) without serving anything, and print the verdict.

Examples:
  landerd test-ip 31.13.25.7
  landerd test-ip 203.0.113.5 --user-agent "facebookexternalhit/1.1"`,
	Args: cobra.ExactArgs(1),
	RunE: runTestIP,
}

func init() {
	testIPCmd.Flags().StringVar(&testIPUserAgent, "user-agent", "", "user agent to classify alongside the ip")
	rootCmd.AddCommand(testIPCmd)
}

func runTestIP(cmd *cobra.Command, args []string) error {
	classifier := cloak.NewClassifier(cloak.DefaultLists(), geo.Default(), quietLogger())

	verdict := classifier.Classify(cloak.Signals{
		IP:        args[0],
		UserAgent: testIPUserAgent,
	})

	fmt.Printf("IP: %s\n", args[0])
	if verdict.Country != "" {
		fmt.Printf("Country: %s\n", verdict.Country)
	}
	fmt.Printf("Crawler UA: %v\n", verdict.CrawlerUA)
	fmt.Printf("Crawler IP: %v\n", verdict.CrawlerIP)
	fmt.Printf("Proxy/hosting IP: %v\n", verdict.ProxyIP)
	fmt.Printf("Geo escalated: %v\n", verdict.GeoEscalated)
	fmt.Println()
	if verdict.ShouldCloak {
		fmt.Println("Verdict: CLOAK")
	} else {
		fmt.Println("Verdict: PASS")
	}
	for _, reason := range verdict.Reasons {
		fmt.Printf("  - %s\n", reason)
	}
	return nil
}

package constants_test

import (
	"fmt"
	"net/http"
	"time"

	"github.com/openagenda-tools/uniqloc/pkg/constants"
)

// Example demonstrates the matching defaults
func Example() {
	fmt.Printf("close under %.0fm, similar from %.0f%%\n",
		constants.DefaultGeoDistanceThreshold,
		constants.DefaultPercentSimilarThreshold,
	)
	// Output: close under 100m, similar from 70%
}

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	client := &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
	fmt.Println(client.Timeout)
	// Output: 30s
}

// Example_filename demonstrates report file naming
func Example_filename() {
	at := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	fmt.Println(constants.ReportFilePrefix + at.Format(constants.TimeFormatFilename) + ".csv")
	// Output: unique-locations-2024-03-09T14-05.csv
}

package optimizer

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// SaveResultsToCSV writes the results, best first, with one column per
// parameter and per metric.
func SaveResultsToCSV(results []*Result, targetMetric MetricName, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	sort.Sort(ResultSorter{
		Results:    results,
		MetricName: string(targetMetric),
		Maximize:   true,
	})

	paramNames, metricNames := columnNames(results)

	header := []string{"rank", "duration"}
	header = append(header, paramNames...)
	header = append(header, metricNames...)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, result := range results {
		row := []string{
			strconv.Itoa(i + 1),
			result.Duration.String(),
		}
		for _, name := range paramNames {
			row = append(row, formatValue(result.Parameters[name]))
		}
		for _, name := range metricNames {
			value, exists := result.Metrics[name]
			if !exists {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(value, 'f', 4, 64))
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

// PrintResults renders the top results as a table on stdout.
func PrintResults(results []*Result, targetMetric MetricName, topN int) {
	if len(results) == 0 {
		fmt.Println("No results to display")
		return
	}

	sort.Sort(ResultSorter{
		Results:    results,
		MetricName: string(targetMetric),
		Maximize:   true,
	})

	if topN > 0 && topN < len(results) {
		results = results[:topN]
	}

	paramNames, metricNames := columnNames(results)

	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"Rank"}
	header = append(header, paramNames...)
	header = append(header, metricNames...)
	table.SetHeader(header)

	for i, result := range results {
		row := []string{strconv.Itoa(i + 1)}
		for _, name := range paramNames {
			row = append(row, formatValue(result.Parameters[name]))
		}
		for _, name := range metricNames {
			value, exists := result.Metrics[name]
			switch {
			case !exists:
				row = append(row, "")
			case math.IsInf(value, -1):
				row = append(row, "-inf")
			default:
				row = append(row, strconv.FormatFloat(value, 'f', 4, 64))
			}
		}
		table.Append(row)
	}

	fmt.Printf("\nTop %d results by %s\n", len(results), targetMetric)
	table.Render()
}

// FormatParameterSet formats a parameter set as a single sorted line.
func FormatParameterSet(params ParameterSet) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	result := "{"
	for i, name := range names {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s: %v", name, params[name])
	}
	return result + "}"
}

// MergeResults combines multiple result sets into a single slice
func MergeResults(resultSets ...[]*Result) []*Result {
	totalSize := 0
	for _, set := range resultSets {
		totalSize += len(set)
	}

	merged := make([]*Result, 0, totalSize)
	for _, set := range resultSets {
		merged = append(merged, set...)
	}

	return merged
}

// columnNames collects and sorts the union of parameter and metric keys.
func columnNames(results []*Result) (params, metrics []string) {
	paramSeen := make(map[string]bool)
	metricSeen := make(map[string]bool)
	for _, result := range results {
		for name := range result.Parameters {
			paramSeen[name] = true
		}
		for name := range result.Metrics {
			metricSeen[name] = true
		}
	}

	for name := range paramSeen {
		params = append(params, name)
	}
	for name := range metricSeen {
		metrics = append(metrics, name)
	}
	sort.Strings(params)
	sort.Strings(metrics)
	return params, metrics
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', 4, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

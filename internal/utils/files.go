package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ReadFloatRows reads whitespace separated numbers, minColumns to maxColumns
// per line. Empty lines and lines starting with '#' are skipped.
func ReadFloatRows(filename string, minColumns, maxColumns int) ([][]float64, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	var result [][]float64

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		parts := strings.Fields(line)

		if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
			continue
		}

		if len(parts) < minColumns || len(parts) > maxColumns {
			return nil, fmt.Errorf("invalid format in line: %q - expected %d to %d numbers, got %d", line, minColumns, maxColumns, len(parts))
		}

		row := make([]float64, len(parts))
		for i := range parts {
			row[i], err = strconv.ParseFloat(parts[i], 64)
			if err != nil {
				return nil, fmt.Errorf("error parsing float in line %q: %w", line, err)
			}
		}
		result = append(result, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return result, nil
}

func GetFilename(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OpenFile creates the output file for one named result of a network, either
// as <output>/<suffix>/<network>.<ext> or as <output>/<network>_<suffix>.<ext>.
func OpenFile(makeDir bool, outputPath, fileSuffix, networkName, ext string) (*os.File, error) {
	if makeDir && fileSuffix != "" && fileSuffix != "." {
		dir := filepath.Join(outputPath, fileSuffix)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, err
		}
		return os.Create(filepath.Join(dir, networkName+"."+ext))
	}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0750); err != nil {
			return nil, err
		}
	}
	return os.Create(filepath.Join(outputPath, networkName+"_"+fileSuffix+"."+ext))
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/rebac"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "schedule":
		handleSchedule()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("rebac-config - Policy snapshot tool for rebac")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  rebac-config convert <input> <output>  - Convert between formats")
	fmt.Println("  rebac-config validate <file>           - Validate a policy snapshot")
	fmt.Println("  rebac-config stats <file>              - Show snapshot statistics")
	fmt.Println("  rebac-config schedule <expression>     - Validate a cron schedule")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json, .bin")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: rebac-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)

	inStat, _ := os.Stat(inputFile)
	outStat, _ := os.Stat(outputFile)
	if inStat != nil && outStat != nil {
		reduction := (1 - float64(outStat.Size())/float64(inStat.Size())) * 100
		if reduction > 0 {
			fmt.Printf("Size reduced by %.1f%% (%d -> %d bytes)\n",
				reduction, inStat.Size(), outStat.Size())
		} else {
			fmt.Printf("Size increased by %.1f%% (%d -> %d bytes)\n",
				-reduction, inStat.Size(), outStat.Size())
		}
	}
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rebac-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Resources: %d\n", len(cfg.Resources))
	fmt.Printf("  Roles: %d\n", len(cfg.Roles))
	fmt.Printf("  Actors: %d\n", len(cfg.Actors))
	fmt.Printf("  Overrides: %d\n", len(cfg.Overrides))
	fmt.Printf("  Delegations: %d\n", len(cfg.Delegations))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rebac-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Snapshot Statistics")
	fmt.Println("===================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Resources:   %d\n", len(cfg.Resources))
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Permissions: %d\n", len(cfg.Permissions))
	fmt.Printf("  Actors:      %d\n", len(cfg.Actors))
	fmt.Printf("  Overrides:   %d\n", len(cfg.Overrides))
	fmt.Printf("  Delegations: %d\n", len(cfg.Delegations))
	fmt.Println()

	if len(cfg.Overrides) > 0 {
		allowCount := 0
		denyCount := 0
		for _, g := range cfg.Overrides {
			if g.Effect == rebac.EffectAllow {
				allowCount++
			} else {
				denyCount++
			}
		}
		fmt.Println("Override Details:")
		fmt.Printf("  Allow overrides: %d\n", allowCount)
		fmt.Printf("  Deny overrides:  %d\n", denyCount)
		fmt.Println()
	}

	if len(cfg.Matrix) > 0 {
		totalPerms := 0
		for _, perms := range cfg.Matrix {
			totalPerms += len(perms)
		}
		fmt.Println("Matrix Details:")
		fmt.Printf("  Total grants: %d\n", totalPerms)
		fmt.Printf("  Avg per role: %.1f\n", float64(totalPerms)/float64(len(cfg.Matrix)))
		fmt.Println()
	}

	roots := 0
	for _, r := range cfg.Resources {
		if r.Parent == "" {
			roots++
		}
	}
	fmt.Println("Hierarchy:")
	fmt.Printf("  Roots: %d\n", roots)
	fmt.Printf("  Nodes: %d\n", len(cfg.Resources))
}

func handleSchedule() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: rebac-config schedule <expression>")
		os.Exit(1)
	}

	expr := os.Args[2]
	if err := rebac.ValidateSchedule(expr); err != nil {
		fmt.Printf("Invalid schedule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Schedule is valid: %s\n", expr)
	next, err := rebac.NextOccurrences(expr, 5, 366, time.Now())
	if err == nil && len(next) > 0 {
		fmt.Println("Next occurrences:")
		for _, t := range next {
			fmt.Printf("  %s\n", t.Format(time.RFC3339))
		}
	}
}

func loadConfig(filename string) (*rebac.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	loader := rebac.NewConfigLoader()

	switch ext {
	case ".yaml", ".yml":
		return loader.LoadYAML(data)
	case ".json":
		return loader.LoadJSON(data)
	case ".bin":
		return loader.LoadBinary(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *rebac.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	case ".bin":
		data, err = rebac.EncodeBinaryConfig(cfg)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

package cli

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/device-next/devicecheck/commands"
	"github.com/device-next/devicecheck/utils"
)

const version = "dev"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "devicecheck",
	Short: "A hardware diagnostic harness for cameras, microphones, input and battery",
	Long:  `A diagnostic tool that drives per-device tests (camera, microphone, speaker, keyboard, mouse, touch, battery) against platform capability APIs and reports standardized results.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func initConfig() {
	utils.SetVerbose(verbose)

	cfg, err := utils.LoadConfig(configPath)
	if err != nil {
		utils.Warn("%v", err)
	}
	loadedConfig = cfg
	commands.SetHarness(commands.NewSimHarness(cfg))
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.devicecheck.ini)")
}

// Execute runs the root command
func Execute() error {
	// enable microseconds in logs
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return rootCmd.Execute()
}

// printJson is a helper function to print JSON responses
func printJson(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(jsonData))
}

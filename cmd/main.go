/*
Copyright 2024 Dealseal Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dealseal/dealseal"
	"github.com/dealseal/dealseal/config"
	"github.com/dealseal/dealseal/database"
	"github.com/dealseal/dealseal/internal/notification"
)

// Dealseal represents the CLI application, encapsulating the root Cobra
// command.
type Dealseal struct {
	cmd *cobra.Command
}

// dealsealInstance holds the engine instance and its configuration, shared
// by the subcommands.
type dealsealInstance struct {
	dealseal *dealseal.Dealseal
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the engine before any
// subcommand runs.
func preRun(app *dealsealInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("dealseal.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newDealseal, err := setupDealseal(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.dealseal = newDealseal
		app.cnf = cnf

		return nil
	}
}

// setupDealseal connects the datasource and builds the engine from it.
func setupDealseal(cfg *config.Configuration) (*dealseal.Dealseal, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newDealseal, err := dealseal.NewDealseal(db)
	if err != nil {
		return nil, fmt.Errorf("error creating dealseal: %v", err)
	}
	return newDealseal, nil
}

// NewCLI creates the command-line interface for the Dealseal application.
func NewCLI() *Dealseal {
	var configFile string
	d := &dealsealInstance{}

	var rootCmd = &cobra.Command{
		Use:   "dealseal",
		Short: "Deal confirmation engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./dealseal.json", "Configuration file for dealseal")

	rootCmd.PersistentPreRunE = preRun(d)

	rootCmd.AddCommand(serverCommands(d))
	rootCmd.AddCommand(workerCommands(d))
	rootCmd.AddCommand(migrateCommands())

	return &Dealseal{cmd: rootCmd}
}

func (w Dealseal) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}

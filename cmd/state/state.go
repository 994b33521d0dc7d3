/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package state

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-rc6d/pkg/command"
	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/srv/receiver"
)

const (
	AllOptionName = "all"
)

func printSnapshot(out io.Writer, snapshot *receiver.Snapshot) error {
	if snapshot.ControlState == nil {
		return fmt.Errorf("receiver returned empty state")
	}
	received := time.UnixMilli(int64(snapshot.Timestamp))
	fmt.Fprintf(out, "received=%s ago\n", time.Since(received).Round(time.Millisecond))
	fmt.Fprint(out, snapshot.ControlState.YAML())
	return nil
}

func NewStateCommand(cfg *config.Config) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the last control state of a running receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			if !all {
				snapshot, err := apiClient.GetState()
				if err != nil {
					return err
				}
				return printSnapshot(cmd.OutOrStdout(), snapshot)
			}
			snapshots, err := apiClient.GetStates()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(snapshots))
			for name := range snapshots {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "receiver=%s\n", name)
				if err := printSnapshot(cmd.OutOrStdout(), snapshots[name]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, AllOptionName, false, "Show the states of all receivers sharing the database")
	return cmd
}

func NewStatsCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show receive loop counters of a running receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient := command.NewApiClient(cfg)
			stats, err := apiClient.GetStats()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(stats)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	return cmd
}

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

package receive

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-rc6d/pkg/command"
	"jinr.ru/greenlab/go-rc6d/pkg/config"
)

const (
	AddressOptionName = "address"
	PortOptionName    = "port"
	PrintOptionName   = "print"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	var address string
	var port int
	var printStates bool
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Start receiver server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed(AddressOptionName) {
				cfg.Receiver.Address = address
			}
			if cmd.Flags().Changed(PortOptionName) {
				cfg.Receiver.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			var out io.Writer
			if printStates {
				out = cmd.OutOrStdout()
			}
			return command.StartReceiverServer(cfg, out)
		},
	}
	cmd.Flags().StringVar(&address, AddressOptionName, "", "Address to bind. Empty means all local addresses")
	cmd.Flags().IntVar(&port, PortOptionName, 0, fmt.Sprintf("Port number to bind. E.g. %d", config.DefaultReceiverPort))
	cmd.Flags().BoolVar(&printStates, PrintOptionName, false, "Print every decoded control state")

	return cmd
}

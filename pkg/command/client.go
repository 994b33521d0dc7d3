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

package command

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-rc6d/pkg/config"
	"jinr.ru/greenlab/go-rc6d/pkg/srv/receiver"
)

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s/api", net.JoinHostPort(cfg.Api.Address, strconv.Itoa(cfg.Api.Port))),
	}
}

func (c *ApiClient) get(url string, v interface{}) error {
	r, err := req.Get(url)
	if err != nil {
		return err
	}
	if r.Response().StatusCode != http.StatusOK {
		return ErrApi{
			Url:    url,
			Status: r.Response().Status,
			Body:   strings.TrimSpace(r.String()),
		}
	}
	return r.ToJSON(v)
}

// GetState requests the last control state of the receiver
func (c *ApiClient) GetState() (*receiver.Snapshot, error) {
	snapshot := &receiver.Snapshot{}
	if err := c.get(fmt.Sprintf("%s/state", c.ApiPrefix), snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetStates requests the last control state of every receiver known to the server
func (c *ApiClient) GetStates() (map[string]*receiver.Snapshot, error) {
	snapshots := make(map[string]*receiver.Snapshot)
	if err := c.get(fmt.Sprintf("%s/states", c.ApiPrefix), &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// GetStats requests the receive loop counters
func (c *ApiClient) GetStats() (*receiver.Stats, error) {
	stats := &receiver.Stats{}
	if err := c.get(fmt.Sprintf("%s/stats", c.ApiPrefix), stats); err != nil {
		return nil, err
	}
	return stats, nil
}

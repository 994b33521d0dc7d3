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

package receiver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-rc6d/pkg/layers"
	"jinr.ru/greenlab/go-rc6d/pkg/log"
)

const (
	BucketNamePrefix = "rc_"
	SnapshotKey      = "snapshot"
	OpenTimeout      = time.Second
)

// Snapshot is the last control state of a receiver and the time it was stored
type Snapshot struct {
	ControlState *layers.ControlState `json:"control_state"`
	// Timestamp in milliseconds since epoch
	Timestamp uint64 `json:"timestamp"`
}

type State struct {
	context.Context
	DB *bbolt.DB
}

func NewState(ctx context.Context, dbPath string, names ...string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, err
	}
	if err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range names {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucketName(name))); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &State{
		Context: ctx,
		DB:      db,
	}, nil
}

func bucketName(name string) string {
	return fmt.Sprintf("%s%s", BucketNamePrefix, name)
}

func Now() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// Close ...
func (s *State) Close() {
	s.DB.Close()
}

// SetControlState stores cs as the last state of the named receiver
func (s *State) SetControlState(name string, cs *layers.ControlState) error {
	log.Debug("Setting control state: receiver: %s", name)
	snapshot := &Snapshot{
		ControlState: cs,
		Timestamp:    Now(),
	}
	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName(name)))
		if err != nil {
			return err
		}
		return b.Put([]byte(SnapshotKey), data)
	})
}

// GetControlState returns the last stored state of the named receiver
func (s *State) GetControlState(name string) (*Snapshot, error) {
	log.Debug("Getting control state: receiver: %s", name)
	snapshot := &Snapshot{}
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName(name)))
		if b == nil {
			return ErrNoState{Name: name}
		}
		data := b.Get([]byte(SnapshotKey))
		if data == nil {
			return ErrNoState{Name: name}
		}
		return yaml.Unmarshal(data, snapshot)
	}); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// GetAllControlStates returns the last state of every receiver that has one
func (s *State) GetAllControlStates() (map[string]*Snapshot, error) {
	log.Debug("Getting all control states")
	result := make(map[string]*Snapshot)
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			data := b.Get([]byte(SnapshotKey))
			if data == nil {
				return nil
			}
			snapshot := &Snapshot{}
			if err := yaml.Unmarshal(data, snapshot); err != nil {
				log.Error("Error while unmarshalling snapshot: bucket: %s error: %s", name, err)
				return err
			}
			result[string(name[len(BucketNamePrefix):])] = snapshot
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return result, nil
}

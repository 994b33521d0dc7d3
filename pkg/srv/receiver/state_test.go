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
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-rc6d/pkg/layers"
)

func newTestState(t *testing.T, names ...string) *State {
	t.Helper()
	state, err := NewState(context.Background(), filepath.Join(t.TempDir(), "db", "state.db"), names...)
	require.NoError(t, err)
	t.Cleanup(state.Close)
	return state
}

func TestStateSetGet(t *testing.T) {
	state := newTestState(t, "pilot")

	cs, err := layers.DecodeControlState([]byte(otherFrame), 49.75)
	require.NoError(t, err)
	before := Now()
	require.NoError(t, state.SetControlState("pilot", cs))

	snapshot, err := state.GetControlState("pilot")
	require.NoError(t, err)
	assert.Equal(t, cs, snapshot.ControlState)
	assert.GreaterOrEqual(t, snapshot.Timestamp, before)
}

func TestStateOverwrite(t *testing.T) {
	state := newTestState(t, "pilot")

	require.NoError(t, state.SetControlState("pilot", layers.NewControlState(1)))
	latest := layers.NewControlState(2)
	latest.Buttons[7] = 1
	require.NoError(t, state.SetControlState("pilot", latest))

	snapshot, err := state.GetControlState("pilot")
	require.NoError(t, err)
	assert.Equal(t, latest, snapshot.ControlState)
}

func TestStateNoState(t *testing.T) {
	state := newTestState(t, "pilot")

	for _, name := range []string{"pilot", "unknown"} {
		_, err := state.GetControlState(name)
		var noState ErrNoState
		require.True(t, errors.As(err, &noState))
		assert.Equal(t, name, noState.Name)
	}
}

func TestStateGetAll(t *testing.T) {
	state := newTestState(t, "left", "right", "idle")

	require.NoError(t, state.SetControlState("left", layers.NewControlState(10)))
	require.NoError(t, state.SetControlState("right", layers.NewControlState(20)))

	all, err := state.GetAllControlStates()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 10.0, all["left"].ControlState.Frequency)
	assert.Equal(t, 20.0, all["right"].ControlState.Frequency)
}

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

package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, DebugLevel, Level())

	err := SetLevel("verbose")
	require.Error(t, err)
	var levelErr ErrLogLevel
	assert.True(t, errors.As(err, &levelErr))
	assert.Equal(t, "verbose", levelErr.Level)
	assert.Equal(t, DebugLevel, Level())
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	out := Writer()
	defer Init(out, "info")

	Init(buf, "warning")
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warning("warning %d", 3)
	Error("error %d", 4)

	logged := buf.String()
	assert.NotContains(t, logged, "debug 1")
	assert.NotContains(t, logged, "info 2")
	assert.Contains(t, logged, LogPrefix)
	assert.Contains(t, logged, WarningPrefix+"warning 3")
	assert.Contains(t, logged, ErrorPrefix+"error 4")
}

func TestInitPanicsOnWrongLevel(t *testing.T) {
	out := Writer()
	defer Init(out, "info")
	assert.Panics(t, func() { Init(out, "loud") })
}

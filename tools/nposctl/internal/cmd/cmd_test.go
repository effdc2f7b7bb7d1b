// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

func execute(t *testing.T, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		_configPaths = nil
		_scriptPath = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestElect(t *testing.T) {
	require := require.New(t)
	snapshot, err := readSnapshot(filepath.Join("testdata", "snapshot.yaml"))
	require.NoError(err)
	supports, score, err := elect(snapshot)
	require.NoError(err)
	require.Len(supports, 2)
	require.ElementsMatch([]string{"alice", "bob"}, []string{supports[0].Target, supports[1].Target})
	require.EqualValues(380, score.SumStake.Uint64())

	out, err := execute(t, "elect", "--snapshot", filepath.Join("testdata", "snapshot.yaml"))
	require.NoError(err)
	require.Contains(out, "alice")
	require.Contains(out, "score [")
	require.NotContains(out, "carol")
}

func TestElect_BadSnapshot(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(os.WriteFile(path, []byte(content), 0600))
		return path
	}

	_, err := readSnapshot(filepath.Join(dir, "missing.yaml"))
	require.Error(err)
	_, err = readSnapshot(write("seats.yaml", "toElect: 0\n"))
	require.Error(err)
	_, err = readSnapshot(write("unknown.yaml", "toElect: 1\nseats: 2\n"))
	require.Error(err)

	snapshot, err := readSnapshot(write("dup.yaml", strings.Join([]string{
		"toElect: 1",
		"candidates:",
		"  - id: alice",
		"    stake: 10",
		"voters:",
		"  - id: alice",
		"    stake: 5",
		"    targets: [alice]",
	}, "\n")))
	require.NoError(err)
	_, _, err = elect(snapshot)
	require.Error(err)
}

func TestSimulate(t *testing.T) {
	require := require.New(t)
	out, err := execute(t, "simulate", "--blocks", "3")
	require.NoError(err)
	require.Contains(out, "Height")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(len(lines), 4)
}

func TestScript(t *testing.T) {
	require := require.New(t)
	from, to := identityset.Address(0).String(), identityset.Address(1).String()
	script := &Script{Actions: []ScriptedAction{
		{Block: 1, Kind: "bond", From: from, To: to, Value: "100"},
		{Block: 1, Kind: "forceNewEra"},
		{Block: 2, Kind: "nominate", From: from, Targets: []string{to, "bad"}},
		{Block: 3, Kind: "unbond", From: from, Value: "-1"},
		{Block: 4, Kind: "slash", From: from},
	}}

	envs, err := script.At(1)
	require.NoError(err)
	require.Len(envs, 2)
	require.Equal(protocol.OriginSigned, envs[0].Origin)
	require.IsType(&action.Bond{}, envs[0].Action)
	require.Equal(protocol.OriginRoot, envs[1].Origin)
	for h := uint64(2); h <= 4; h++ {
		_, err = script.At(h)
		require.Error(err)
	}
	envs, err = script.At(5)
	require.NoError(err)
	require.Empty(envs)
}

func TestSimulate_Script(t *testing.T) {
	require := require.New(t)
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(os.WriteFile(path, []byte("actions:\n  - block: 2\n    kind: forceNewEra\n"), 0600))
	script, err := readScript(path)
	require.NoError(err)
	require.Len(script.Actions, 1)

	out, err := execute(t, "simulate", "--blocks", "2", "--script", path)
	require.NoError(err)
	require.Contains(out, "Height")
}

package main

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/internal/rpc"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the action queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queued actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status rpc.QueueStatusResult
		if err := call("queue_getStatus", nil, &status); err != nil {
			return err
		}
		pterm.DefaultSection.Printfln("Action queue (%d)", status.Length)
		if status.InFlight != nil {
			pterm.Info.Printfln("In flight: %s", status.InFlight.Hash)
		}
		if status.Length == 0 {
			return nil
		}

		data := pterm.TableData{{"Seq", "Hash", "Type", "State", "Updated"}}
		for _, m := range status.Actions {
			data = append(data, []string{
				strconv.FormatUint(m.Seq, 10),
				shortHash(m.Hash.String()),
				string(m.Type),
				stateLabel(m.State),
				m.UpdatedAt.Local().Format(time.DateTime),
			})
		}
		return pterm.DefaultTable.WithHasHeader(true).WithData(data).Render()
	},
}

var queueGetCmd = &cobra.Command{
	Use:   "get <action-hash>",
	Short: "Show one action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var m queue.Meta
		if err := call("queue_getAction", rpc.HashParam{Hash: args[0]}, &m); err != nil {
			return err
		}
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"Hash", m.Hash.String()},
			{"Type", string(m.Type)},
			{"Seq", strconv.FormatUint(m.Seq, 10)},
			{"State", stateLabel(m.State)},
			{"Created", m.CreatedAt.Local().Format(time.DateTime)},
			{"Updated", m.UpdatedAt.Local().Format(time.DateTime)},
		}).Render()
	},
}

// stateLabel colors a state for terminal output.
func stateLabel(s queue.State) string {
	switch s {
	case queue.StateFailed:
		return pterm.Red(string(s))
	case queue.StateInProgress:
		return pterm.Yellow(string(s))
	case queue.StateDone:
		return pterm.Green(string(s))
	default:
		return string(s)
	}
}

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueGetCmd)
}

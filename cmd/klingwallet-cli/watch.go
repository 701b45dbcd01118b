package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
)

var watchTab string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream messages for a tab, or for the wallet UI by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := wsURL(global.RPC, watchTab)
		if err != nil {
			return err
		}
		conn, _, err := websocket.DefaultDialer.Dial(u, nil)
		if err != nil {
			return fmt.Errorf("connect %s: %w", u, err)
		}
		defer conn.Close()
		pterm.Info.Printfln("Watching %s (Ctrl-C to stop)", u)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		stopped := make(chan struct{})
		go func() {
			<-sigCh
			close(stopped)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		}()

		for {
			var msg messaging.Message
			if err := conn.ReadJSON(&msg); err != nil {
				select {
				case <-stopped:
					return nil
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					pterm.Info.Println("Daemon closed the stream")
					return nil
				}
				return err
			}
			fmt.Printf("%s  %-30s %s\n", time.Now().Format(time.TimeOnly), msg.Type, string(msg.Data))
		}
	},
}

// wsURL derives the websocket stream URL from the daemon's RPC endpoint.
func wsURL(rpcURL, tab string) (string, error) {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return "", fmt.Errorf("invalid rpc url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid rpc url scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	q := url.Values{}
	if tab != "" {
		q.Set("tab", tab)
	} else {
		q.Set("role", "ui")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func init() {
	watchCmd.Flags().StringVar(&watchTab, "tab", "", "Tab id to watch (default: wallet UI feed)")
}

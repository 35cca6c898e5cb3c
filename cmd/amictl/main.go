// Command amictl connects to an Asterisk Manager Interface listener,
// logs in, subscribes to unsolicited events, and issues a small,
// representative set of actions before logging off.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/clwalker/goami/ami"
	"github.com/clwalker/goami/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars and defaults apply regardless)")
	pingInterval := flag.Duration("ping-interval", 5*time.Second, "interval between keepalive Ping actions")
	runFor := flag.Duration("run-for", 30*time.Second, "how long to run before logging off")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("amictl: loading config: %v", err)
	}

	conn, err := ami.Dial(cfg.AMI.Host, cfg.AMI.Port)
	if err != nil {
		log.Fatalf("amictl: dial: %v", err)
	}
	defer conn.Close()

	conn.Subscribe(func(rec *ami.Record) {
		log.Printf("event: %s", rec.ToWire())
	})

	var login *ami.Action
	if cfg.AMI.AuthType == "md5" {
		login = ami.NewLoginMD5(cfg.AMI.Username)
		if err := authenticateMD5(conn, login, cfg.AMI.Secret); err != nil {
			log.Fatalf("amictl: md5 auth: %v", err)
		}
	} else {
		login = ami.NewLogin(cfg.AMI.Username, cfg.AMI.Secret)
	}

	reaction, err := conn.InvokeWithTimeout(login, cfg.AMI.InvokeTimeout)
	if err != nil {
		log.Fatalf("amictl: login: %v", err)
	}
	if !reaction.IsSuccess() {
		log.Fatalf("amictl: login rejected: %s", reaction.ToWire())
	}
	log.Printf("amictl: logged in, server version %q", conn.AMIVersion())

	events := ami.NewEvents(cfg.AMI.EventMask)
	if _, err := conn.InvokeWithTimeout(events, cfg.AMI.InvokeTimeout); err != nil {
		log.Printf("amictl: events: %v", err)
	}

	stopPinging := make(chan struct{})
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		ticker := time.NewTicker(*pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopPinging:
				return
			case <-ticker.C:
				if _, err := conn.InvokeWithTimeout(ami.NewPing(), cfg.AMI.InvokeTimeout); err != nil {
					log.Printf("amictl: ping: %v", err)
				}
			}
		}
	}()

	runCatalogue(conn, cfg.AMI.InvokeTimeout)

	time.Sleep(*runFor)

	close(stopPinging)
	<-pingDone

	if _, err := conn.InvokeWithTimeout(ami.NewLogoff(), cfg.AMI.InvokeTimeout); err != nil {
		log.Printf("amictl: logoff: %v", err)
	}
}

// runCatalogue exercises a representative cross-section of the action
// catalogue, logging each Reaction it gets back.
func runCatalogue(conn *ami.Connection, timeout time.Duration) {
	actions := []*ami.Action{
		ami.NewListCommands(),
		ami.NewParkedCalls(),
		ami.NewMailboxStatus("5558675309"),
		ami.NewMailboxCount("5558675309"),
		ami.NewVoicemailBoxSummary("default", "5558675309"),
		ami.NewVoicemailRefresh(),
		ami.NewDeviceStateList(),
	}
	for _, action := range actions {
		reaction, err := conn.InvokeWithTimeout(action, timeout)
		if err != nil {
			log.Printf("amictl: %s: %v", action.Name(), err)
			continue
		}
		log.Printf("amictl: %s -> %s", action.Name(), reaction.ToWire())
	}

	if err := conn.AsyncInvoke(ami.NewListCommands()); err != nil {
		log.Printf("amictl: async list commands: %v", err)
	}
}

// authenticateMD5 trades a Challenge action for a nonce and swaps
// login's plaintext Secret for the matching MD5 Key, so the account
// secret is never sent over the wire.
func authenticateMD5(conn *ami.Connection, login *ami.Action, secret string) error {
	reaction, err := conn.Invoke(ami.NewChallenge())
	if err != nil {
		return err
	}
	challenge, _ := reaction.Head().Get("Challenge")

	login.Set("AuthType", "MD5")
	login.Set("Key", ami.ChallengeResponse(challenge, secret))
	return nil
}

package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/softap-stack/softap-go/pkg/ap"
	"github.com/softap-stack/softap-go/pkg/hal/halsim"
	"github.com/softap-stack/softap-go/pkg/session"
)

// console is the interactive command loop. It drives both the session
// (stop, config updates) and the simulator (scripted clients and
// failures).
type console struct {
	sess *session.Session
	sim  *halsim.Simulator
	cfg  *ap.SoftApConfiguration
	rl   *readline.Instance
}

func newConsole(sess *session.Session, sim *halsim.Simulator, cfg *ap.SoftApConfiguration) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "softap> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{sess: sess, sim: sim, cfg: cfg, rl: rl}, nil
}

func (c *console) run() {
	defer c.rl.Close()

	c.printHelp()
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "status", "s":
			c.cmdStatus()
		case "clients":
			c.cmdClients()
		case "stop":
			c.sess.Stop()
		case "update-timeout":
			c.cmdUpdateTimeout(args)
		case "block":
			c.cmdBlock(args)
		case "connect":
			c.cmdConnect(args, true)
		case "disconnect":
			c.cmdConnect(args, false)
		case "fail-instance":
			c.cmdFailInstance(args)
		case "fail":
			c.cmdFail()
		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			return
		default:
			fmt.Fprintf(c.rl.Stdout(), "unknown command %q (try help)\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.rl.Stdout(), `Commands:
  status                   Show session state
  clients                  List connected clients
  stop                     Stop the session
  update-timeout <dur>     Change the idle shutdown timeout (e.g. 5m)
  block <mac>              Add a MAC to the block list and apply
  connect <mac> [inst]     Simulate a client connecting
  disconnect <mac> [inst]  Simulate a client leaving
  fail-instance <inst>     Simulate a bridged instance failure
  fail                     Simulate a whole-AP failure
  quit                     Exit
`)
}

func (c *console) cmdStatus() {
	st := c.sess.Status()
	fmt.Fprintf(c.rl.Stdout(), "state:     %s\n", st.State)
	if st.State == ap.ApStateFailed {
		fmt.Fprintf(c.rl.Stdout(), "failure:   %s\n", st.Failure)
	}
	fmt.Fprintf(c.rl.Stdout(), "interface: %s\n", st.Interface)
	fmt.Fprintf(c.rl.Stdout(), "bridged:   %v\n", st.Bridged)
	fmt.Fprintf(c.rl.Stdout(), "instances: %s\n", strings.Join(st.Instances, ", "))
	fmt.Fprintf(c.rl.Stdout(), "clients:   %d\n", st.ClientCount)
}

func (c *console) cmdClients() {
	st := c.sess.Status()
	if len(st.Clients) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "no connected clients")
		return
	}
	for _, client := range st.Clients {
		fmt.Fprintf(c.rl.Stdout(), "%s  on %s  since %s\n",
			client.Mac, client.Instance, client.ConnectedAt.Format(time.TimeOnly))
	}
}

func (c *console) cmdUpdateTimeout(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: update-timeout <duration>")
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "bad duration: %v\n", err)
		return
	}
	next := c.cfg.Clone()
	next.AutoShutdownEnabled = true
	next.ShutdownTimeout = d
	c.cfg = next
	c.sess.UpdateConfiguration(next)
	fmt.Fprintf(c.rl.Stdout(), "shutdown timeout set to %s\n", d)
}

func (c *console) cmdBlock(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: block <mac>")
		return
	}
	mac, err := net.ParseMAC(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "bad MAC: %v\n", err)
		return
	}
	next := c.cfg.Clone()
	next.BlockList = append(next.BlockList, mac)
	c.cfg = next
	c.sess.UpdateConfiguration(next)
	fmt.Fprintf(c.rl.Stdout(), "%s blocked\n", mac)
}

func (c *console) cmdConnect(args []string, connect bool) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: connect|disconnect <mac> [instance]")
		return
	}
	mac, err := net.ParseMAC(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "bad MAC: %v\n", err)
		return
	}
	st := c.sess.Status()
	if st.Interface == "" || len(st.Instances) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "no running AP")
		return
	}
	instance := st.Instances[0]
	if len(args) > 1 {
		instance = args[1]
	}
	if connect {
		err = c.sim.ConnectClient(st.Interface, instance, mac)
	} else {
		err = c.sim.DisconnectClient(st.Interface, instance, mac)
	}
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
	}
}

func (c *console) cmdFailInstance(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.rl.Stdout(), "usage: fail-instance <instance>")
		return
	}
	st := c.sess.Status()
	if st.Interface == "" {
		fmt.Fprintln(c.rl.Stdout(), "no running AP")
		return
	}
	c.sim.FailInstance(st.Interface, args[0])
}

func (c *console) cmdFail() {
	st := c.sess.Status()
	if st.Interface == "" {
		fmt.Fprintln(c.rl.Stdout(), "no running AP")
		return
	}
	c.sim.Fail(st.Interface)
}

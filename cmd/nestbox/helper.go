package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	nestbox "github.com/everydev1618/nestbox"
	"github.com/everydev1618/nestbox/hub"
	"github.com/everydev1618/nestbox/internal/layout"
)

// helperCmd dispatches the helper subcommands.
func helperCmd(args []string) {
	if len(args) == 0 {
		runHelperList(nil)
		return
	}

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "spawn":
		runHelperSpawn(rest)
	case "list":
		runHelperList(rest)
	case "stop":
		runHelperStop(rest)
	case "cleanup":
		runHelperCleanup(rest)
	case "send":
		runHelperSend(rest)
	case "broadcast":
		runHelperBroadcast(rest)
	case "log":
		runHelperLog(rest)
	case "help", "-h", "--help":
		printHelperUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown helper command: %s\n\n", sub)
		printHelperUsage()
		os.Exit(1)
	}
}

func printHelperUsage() {
	fmt.Println(`Usage: nestbox helper <command> [options]

Spawn, list, stop, cleanup, and message helper instances.

Commands:
  spawn      Spawn a new helper instance
  list       List existing helpers
  stop       Stop a helper's container
  cleanup    Stop a helper and remove its directories
  send       Send a message to a helper by number
  broadcast  Send a message to all helpers
  log        View the inter-agent message log`)
}

// helpersDir returns the helpers directory for the current session:
// $HOME/helpers when running inside a sandbox, where the parent mounted
// it.
func helpersDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "helpers")
}

// hubSocketPath returns the path the hub socket is mounted at inside a
// sandbox.
func hubSocketPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".nestbox", "helper.sock")
}

// ownSpawnConfigPath returns the read-only spawn config a parent wrote
// for this agent, absent for the director.
func ownSpawnConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, layout.SpawnConfigName)
}

func helpersEnabled() bool {
	_, err := os.Stat(hubSocketPath())
	return err == nil
}

func runHelperSpawn(args []string) {
	fs := flag.NewFlagSet("helper spawn", flag.ExitOnError)
	depth := fs.Int("depth", -2, "Spawn depth limit for the child (only if no config override)")
	breadth := fs.Int("breadth", -2, "Spawn breadth limit for the child (only if no config override)")
	model := fs.String("model", "", "Override model variant for the child (e.g. sonnet)")
	fs.Parse(args)

	var cliDepth, cliBreadth *int
	if *depth != -2 {
		cliDepth = depth
	}
	if *breadth != -2 {
		cliBreadth = breadth
	}

	dir := helpersDir()

	// Budget precedence: parent-written spawn.toml, then host config,
	// then flags, then defaults.
	roBudget, err := nestbox.ReadSpawnConfig(ownSpawnConfigPath())
	if err != nil {
		fatal(err)
	}
	cfg, err := nestbox.LoadConfig(nestbox.ConfigPath())
	if err != nil {
		fatal(err)
	}
	budget := nestbox.ResolveSpawnBudget(roBudget, cfg.SpawnBudget(), cliDepth, cliBreadth)

	existing := layout.List(dir)
	if err := nestbox.CheckSpawnAllowed(budget, len(existing)); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot spawn: %v\n", err)
		os.Exit(1)
	}

	helperNum := layout.NextHelperNumber(existing)
	if err := layout.Create(dir, helperNum, existing); err != nil {
		fatal(err)
	}

	childCfg := nestbox.ChildBudget(budget)
	if err := nestbox.WriteSpawnConfig(layout.SpawnConfigPath(dir, helperNum), childCfg); err != nil {
		fatal(err)
	}

	state := layout.State{
		Status:  "spawned",
		Model:   *model,
		Depth:   childCfg.Depth,
		Breadth: childCfg.Breadth,
		Peers:   existing,
	}

	var containerName string
	if helpersEnabled() {
		resp, err := spawnViaHub(helperNum, *model, dir)
		switch {
		case err != nil:
			state.Status = "failed"
			state.Error = err.Error()
			fmt.Fprintf(os.Stderr, "Warning: container launch failed: %v\n", err)
		case resp.Status != "ok":
			state.Status = "failed"
			state.Error = resp.Message
			fmt.Fprintf(os.Stderr, "Warning: container launch failed: %s\n", resp.Message)
		default:
			containerName = resp.ContainerName
			state.Status = "running"
			state.ContainerName = containerName
		}
	}

	if err := layout.WriteState(dir, helperNum, state); err != nil {
		fatal(err)
	}

	fmt.Printf("Spawned helper %d\n", helperNum)
	if *model != "" {
		fmt.Printf("  model: %s\n", *model)
	}
	fmt.Printf("  depth: %d, breadth: %d\n", childCfg.Depth, childCfg.Breadth)
	fmt.Printf("  peers: %v\n", existing)
	if containerName != "" {
		fmt.Printf("  container: %s\n", containerName)
	}
}

func spawnViaHub(helperNum int, model, dir string) (hub.Response, error) {
	req := map[string]any{
		"action":      "spawn",
		"helper_num":  helperNum,
		"helpers_dir": dir,
	}
	if model != "" {
		req["model"] = model
	}
	return hub.SendRequest(hubSocketPath(), req)
}

func runHelperList(args []string) {
	dir := helpersDir()
	existing := layout.List(dir)

	if len(existing) == 0 {
		fmt.Println("No helpers.")
		return
	}

	fmt.Printf("%-6s %-10s %-10s %-6s %s\n", "NUM", "STATUS", "MODEL", "DEPTH", "PEERS")
	for _, num := range existing {
		state, err := layout.ReadState(dir, num)
		if err != nil {
			state = layout.State{Status: "unknown"}
		}
		status := state.Status
		if status == "" {
			status = "unknown"
		}
		model := state.Model
		if model == "" {
			model = "-"
		}
		fmt.Printf("%-6d %-10s %-10s %-6d %d ch\n", num, status, model, state.Depth, len(state.Peers))
	}
}

func runHelperStop(args []string) {
	num := parseHelperArg(args, "stop")
	dir := helpersDir()

	state, err := layout.ReadState(dir, num)
	if err != nil {
		fatal(err)
	}
	if state.Status == "stopped" {
		fmt.Printf("Helper %d is already stopped.\n", num)
		return
	}

	stopContainerBestEffort(state.ContainerName)

	state.Status = "stopped"
	if err := layout.WriteState(dir, num, state); err != nil {
		fatal(err)
	}
	fmt.Printf("Stopped helper %d.\n", num)
}

func runHelperCleanup(args []string) {
	fs := flag.NewFlagSet("helper cleanup", flag.ExitOnError)
	cascade := fs.Bool("cascade", false, "Also remove all descendant helpers recursively")
	fs.Parse(args)

	num := parseHelperArg(fs.Args(), "cleanup")
	dir := helpersDir()

	state, _ := layout.ReadState(dir, num)
	stopContainerBestEffort(state.ContainerName)

	if *cascade {
		removed := cascadeCleanup(dir, num, state)
		fmt.Printf("Cleaned up helper %d and %d descendant(s).\n", num, len(removed)-1)
		return
	}

	existing := layout.List(dir)
	siblings := make([]int, 0, len(existing))
	for _, n := range existing {
		if n != num {
			siblings = append(siblings, n)
		}
	}
	if err := layout.Remove(dir, num, siblings); err != nil {
		fatal(err)
	}
	fmt.Printf("Cleaned up helper %d.\n", num)
}

// cascadeCleanup removes a helper and every descendant, identified by
// walking each existing helper's parent chain through the spawn tree.
func cascadeCleanup(dir string, num int, state layout.State) []int {
	breadth := state.Breadth
	if breadth == 0 {
		breadth = nestbox.DefaultBreadth
	}

	existing := layout.List(dir)
	var doomed []int
	for _, n := range existing {
		if n == num || isDescendant(n, num, breadth) {
			doomed = append(doomed, n)
		}
	}

	for _, n := range doomed {
		if n != num {
			st, _ := layout.ReadState(dir, n)
			stopContainerBestEffort(st.ContainerName)
		}
		var siblings []int
		for _, m := range layout.List(dir) {
			if m != n {
				siblings = append(siblings, m)
			}
		}
		layout.Remove(dir, n, siblings)
	}
	return doomed
}

// isDescendant reports whether agent lies below ancestor in the spawn
// tree with the given breadth.
func isDescendant(agent, ancestor, breadth int) bool {
	current := agent
	for {
		parent, ok := nestbox.ParentOf(current, breadth)
		if !ok {
			return false
		}
		if parent == ancestor {
			return true
		}
		current = parent
	}
}

func stopContainerBestEffort(containerName string) {
	if containerName == "" || !helpersEnabled() {
		return
	}
	// Best-effort stop; the hub swallows runtime failures too.
	hub.SendRequest(hubSocketPath(), map[string]any{
		"action":         "stop",
		"container_name": containerName,
	})
}

func runHelperSend(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: nestbox helper send <number> <message>")
		os.Exit(1)
	}
	num, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid helper number: %s\n", args[0])
		os.Exit(1)
	}

	c, err := hub.Dial(hubSocketPath())
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	resp, err := c.Send(num, map[string]string{"text": args[1]})
	if err != nil {
		fatal(err)
	}
	if resp.Status != "ok" {
		fatal(fmt.Errorf("send failed: %s", resp.Message))
	}
	fmt.Printf("Sent to helper %d.\n", num)
}

func runHelperBroadcast(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: nestbox helper broadcast <message>")
		os.Exit(1)
	}

	c, err := hub.Dial(hubSocketPath())
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	resp, err := c.Broadcast(map[string]string{"text": args[0]})
	if err != nil {
		fatal(err)
	}
	if resp.Status != "ok" {
		fatal(fmt.Errorf("broadcast failed: %s", resp.Message))
	}
	fmt.Println("Broadcast sent.")
}

func runHelperLog(args []string) {
	fs := flag.NewFlagSet("helper log", flag.ExitOnError)
	follow := fs.Bool("follow", false, "Follow log output (like tail -f)")
	fs.BoolVar(follow, "f", false, "Follow log output (shorthand)")
	fromHelper := fs.Int("from", -1, "Filter messages from a specific helper number")
	last := fs.Int("last", 0, "Show only the last N entries")
	file := fs.String("file", "", "Log file (default ~/.nestbox/logs/default.jsonl)")
	fs.Parse(args)

	path := *file
	if path == "" {
		path = filepath.Join(nestbox.LogDir(), "default.jsonl")
	}

	f, err := os.Open(path)
	if err != nil {
		fatal(err)
	}
	defer f.Close()

	lines := readLogLines(f, *fromHelper)
	if *last > 0 && len(lines) > *last {
		lines = lines[len(lines)-*last:]
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if !*follow {
		return
	}
	for {
		time.Sleep(500 * time.Millisecond)
		for _, line := range readLogLines(f, *fromHelper) {
			fmt.Println(line)
		}
	}
}

// readLogLines formats the JSONL records available from r, filtering by
// sender when fromHelper is non-negative.
func readLogLines(r io.Reader, fromHelper int) []string {
	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		var record map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if fromHelper >= 0 {
			from, ok := record["from"].(float64)
			if !ok || int(from) != fromHelper {
				continue
			}
		}
		out = append(out, formatLogRecord(record))
	}
	return out
}

func formatLogRecord(record map[string]any) string {
	ts, _ := record["ts"].(string)
	switch record["type"] {
	case "message":
		payload, _ := json.Marshal(record["payload"])
		return fmt.Sprintf("%s  %v -> %v  %s", ts, record["from"], record["to"], payload)
	case "control":
		return fmt.Sprintf("%s  [%v] helper %v", ts, record["event"], record["helper"])
	default:
		raw, _ := json.Marshal(record)
		return string(raw)
	}
}

func parseHelperArg(args []string, cmd string) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: nestbox helper %s <number>\n", cmd)
		os.Exit(1)
	}
	num, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid helper number: %s\n", args[0])
		os.Exit(1)
	}
	return num
}

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/nxqos/internal/compiler"
	"github.com/muurk/nxqos/internal/config"
	"github.com/muurk/nxqos/internal/deploy"
	"github.com/muurk/nxqos/internal/nxapi"
	"github.com/muurk/nxqos/internal/policy"
	"github.com/muurk/nxqos/internal/ui"
)

// Deployment command flags
var (
	deviceFlag   string
	tagFlag      string
	portFlag     int
	usernameFlag string
	verifyTLS    bool

	dryRun      bool
	assumeYes   bool
	skipVerify  bool
	batchSize   int
	concurrency int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceFlag, "device", "", "Target device (inventory name or host address)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "NX-API port (default 443)")
	rootCmd.PersistentFlags().StringVar(&usernameFlag, "username", "", "Device username (overrides inventory)")
	rootCmd.PersistentFlags().BoolVar(&verifyTLS, "verify-tls", false, "Verify the device TLS certificate")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(devicesCmd)
}

// validateCmd checks a policy document without touching any device.
var validateCmd = &cobra.Command{
	Use:   "validate <policy.yaml>",
	Short: "Validate a policy document",
	Long: `Parse and validate a policy document without contacting any device.

Structural problems (malformed YAML, missing required fields, unknown
enum values) are reported immediately. A structurally sound document is
then checked semantically and every violation is reported at once:
duplicate names, dangling references, reference cycles, and style
warnings.`,
	Example: `  # Validate a policy
  nxqos validate campus-qos.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, violations, err := compilePolicyFile(args[0])
	if err != nil && len(violations) == 0 {
		// Structural failure: there is no violation list to show.
		return err
	}
	fmt.Println(ui.RenderViolations(violations))
	return err
}

// previewCmd prints the compiled command sequence.
var previewCmd = &cobra.Command{
	Use:   "preview <policy.yaml>",
	Short: "Show the commands a deployment would send",
	Long: `Compile a policy and print the full command sequence in the exact
order a deployment would send it. No device is contacted.

The output is annotated with comment lines describing the policy; those
lines are stripped before transmission, so saved preview output can be
deployed as-is.`,
	Example: `  # Preview the compiled commands
  nxqos preview campus-qos.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func runPreview(cmd *cobra.Command, args []string) error {
	p, violations, err := compilePolicyFile(args[0])
	if err != nil {
		if len(violations) > 0 {
			fmt.Println(ui.RenderViolations(violations))
		}
		return err
	}
	printWarnings(violations)

	out, err := compiler.Preview(p)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

// deployCmd runs the full transaction against one device or a tagged fleet.
var deployCmd = &cobra.Command{
	Use:   "deploy <policy.yaml>",
	Short: "Deploy a policy to one or more devices",
	Long: `Compile a policy and deploy it transactionally.

Each target device gets its own transaction: snapshot the touched
resources, apply the compiled commands in dependency order, read the
configuration back and verify it, then commit. A rejected command or a
verification mismatch rolls the device back to its snapshot. Devices in
a fleet deployment fail and roll back independently.

The device password is read from NXQOS_PASSWORD or prompted.`,
	Example: `  # See what would be sent, no device contact
  nxqos deploy campus-qos.yaml --device lab-leaf1 --dry-run

  # Deploy to one inventory device
  nxqos deploy campus-qos.yaml --device lab-leaf1

  # Deploy to every device tagged "lab", four at a time
  nxqos deploy campus-qos.yaml --tag lab

  # Deploy to an ad-hoc host, skipping the prompt
  nxqos deploy campus-qos.yaml --device 192.168.4.16 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&tagFlag, "tag", "", "Deploy to every inventory device with this tag")
	deployCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compile and plan only, send nothing")
	deployCmd.Flags().BoolVar(&assumeYes, "yes", false, "Skip the confirmation prompt")
	deployCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Commit without reading device state back")
	deployCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Commands per request (0 sends one batch)")
	deployCmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel device limit for fleet deploys")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	p, violations, err := compilePolicyFile(args[0])
	if err != nil {
		if len(violations) > 0 {
			fmt.Println(ui.RenderViolations(violations))
		}
		return err
	}
	printWarnings(violations)

	opts := deploy.Options{
		DryRun:     dryRun,
		SkipVerify: skipVerify,
	}
	coordinator := deploy.NewCoordinator()

	if dryRun {
		client := nxapi.NewClient(nxapi.Config{Host: "dry-run"})
		res := coordinator.Deploy(cmd.Context(), p, client, opts)
		if res.Err != nil {
			return res.Err
		}
		fmt.Printf("Dry run: %d commands would be sent.\n\n", len(res.Planned))
		for _, c := range res.Planned {
			fmt.Println(c)
		}
		return nil
	}

	targets, err := resolveTargets()
	if err != nil {
		return err
	}

	plannedCount := 0
	if cmds, err := compiler.Generate(p); err == nil {
		plannedCount = len(cmds)
	}
	if !assumeYes {
		hosts := make([]string, len(targets))
		for i, tgt := range targets {
			hosts[i] = tgt.host
		}
		if !ui.DeployConfirmation(p.Name, plannedCount, hosts) {
			return fmt.Errorf("deployment cancelled")
		}
	}

	clients := make([]*nxapi.Client, len(targets))
	for i, tgt := range targets {
		cfg := tgt.clientConfig
		cfg.BatchSize = batchSize
		clients[i] = nxapi.NewClient(cfg)
	}

	registry, _ := config.LoadRegistry()
	failed := 0
	results := coordinator.DeployAll(cmd.Context(), p, clients, opts, concurrency)
	for i, res := range results {
		fmt.Println(renderDeployResult(res))
		if res.Committed() {
			if registry != nil && targets[i].name != "" {
				registry.RecordDeployment(targets[i].name, p.Name)
			}
		} else {
			failed++
		}
	}
	if registry != nil {
		if err := registry.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not update inventory: %v\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d device(s) failed to commit", failed, len(results))
	}
	return nil
}

// probeCmd checks device reachability and credentials.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that a device is reachable and accepting commands",
	Example: `  # Probe an inventory device
  nxqos probe --device lab-leaf1

  # Probe an ad-hoc host
  nxqos probe --device 192.168.4.16 --username admin`,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	targets, err := resolveTargets()
	if err != nil {
		return err
	}
	if len(targets) != 1 {
		return fmt.Errorf("probe takes exactly one --device target")
	}

	client := nxapi.NewClient(targets[0].clientConfig)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		fmt.Println(ui.RenderFailure("Device probe failed", err, probeTroubleshooting(err)))
		return fmt.Errorf("device %s is not deployable", targets[0].host)
	}

	fmt.Println(ui.RenderSuccess("Device is reachable", map[string]string{
		"Device":  targets[0].host,
		"Latency": time.Since(start).Round(time.Millisecond).String(),
	}))
	return nil
}

// devicesCmd manages the switch inventory.
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage the switch inventory",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inventory devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		names := registry.Names()
		if len(names) == 0 {
			fmt.Println("No devices in inventory. Add one with 'nxqos devices add'.")
			return nil
		}
		for _, name := range names {
			device := registry.GetDevice(name)
			line := fmt.Sprintf("%-20s %s", name, device.Host)
			if len(device.Tags) > 0 {
				line += "  [" + strings.Join(device.Tags, ", ") + "]"
			}
			if device.LastPolicy != "" {
				line += fmt.Sprintf("  (last: %s at %s)", device.LastPolicy, device.LastDeploy.Format("2006-01-02 15:04"))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var deviceTags []string

var devicesAddCmd = &cobra.Command{
	Use:   "add <name> <host>",
	Short: "Add or update an inventory device",
	Example: `  nxqos devices add lab-leaf1 192.168.4.16 --tag lab
  nxqos devices add core1 10.0.0.1 --port 8443 --username netops --verify-tls`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		registry.SetDevice(args[0], &config.Device{
			Host:      args[1],
			Port:      portFlag,
			Username:  usernameFlag,
			VerifyTLS: verifyTLS,
			Tags:      deviceTags,
		})
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved device %q (%s).\n", args[0], args[1])
		return nil
	},
}

var devicesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an inventory device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		if !registry.RemoveDevice(args[0]) {
			return fmt.Errorf("no device named %q", args[0])
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Removed device %q.\n", args[0])
		return nil
	},
}

func init() {
	devicesAddCmd.Flags().StringArrayVar(&deviceTags, "tag", nil, "Grouping tag (repeatable)")
	devicesCmd.AddCommand(devicesListCmd)
	devicesCmd.AddCommand(devicesAddCmd)
	devicesCmd.AddCommand(devicesRemoveCmd)
}

// --- helpers ---

// compilePolicyFile reads, parses, and validates a policy document.
// Warnings come back alongside a usable policy; errors come back with the
// full violation list for display.
func compilePolicyFile(path string) (*policy.Policy, []policy.Violation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read policy document: %w", err)
	}
	return policy.Compile(data)
}

func printWarnings(violations []policy.Violation) {
	_, warns := policy.SplitSeverity(violations)
	if len(warns) > 0 {
		fmt.Println(ui.RenderViolations(warns))
		fmt.Println()
	}
}

// target is one resolved deployment destination.
type target struct {
	// name is the inventory name, empty for ad-hoc hosts.
	name         string
	host         string
	clientConfig nxapi.Config
}

// resolveTargets turns --device/--tag into connection configs. A --device
// value is looked up in the inventory first and treated as a bare host
// address when not found. The password is shared across a fleet.
func resolveTargets() ([]target, error) {
	if deviceFlag == "" && tagFlag == "" {
		return nil, fmt.Errorf("no target: use --device <name-or-host> or --tag <tag>")
	}
	if deviceFlag != "" && tagFlag != "" {
		return nil, fmt.Errorf("--device and --tag are mutually exclusive")
	}

	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}

	password, err := devicePassword()
	if err != nil {
		return nil, err
	}

	var targets []target
	if tagFlag != "" {
		names := registry.DevicesByTag(tagFlag)
		if len(names) == 0 {
			return nil, fmt.Errorf("no inventory devices tagged %q", tagFlag)
		}
		for _, name := range names {
			device := registry.GetDevice(name)
			username := usernameFor(device, registry.Preferences)
			targets = append(targets, target{
				name:         name,
				host:         device.Host,
				clientConfig: device.ClientConfig(username, password),
			})
		}
		return targets, nil
	}

	if device := registry.GetDevice(deviceFlag); device != nil {
		username := usernameFor(device, registry.Preferences)
		return []target{{
			name:         deviceFlag,
			host:         device.Host,
			clientConfig: device.ClientConfig(username, password),
		}}, nil
	}

	// Not in the inventory: treat the flag value as a host address.
	username := usernameFlag
	if username == "" && registry.Preferences != nil {
		username = registry.Preferences.DefaultUsername
	}
	return []target{{
		host: deviceFlag,
		clientConfig: nxapi.Config{
			Host:      deviceFlag,
			Port:      portFlag,
			Username:  username,
			Password:  password,
			VerifyTLS: verifyTLS,
		},
	}}, nil
}

func usernameFor(device *config.Device, prefs *config.Preferences) string {
	if usernameFlag != "" {
		return usernameFlag
	}
	return device.EffectiveUsername(prefs)
}

// devicePassword reads the password from the environment or prompts for it.
// Passwords are never stored in the inventory file.
func devicePassword() (string, error) {
	if password := os.Getenv("NXQOS_PASSWORD"); password != "" {
		return password, nil
	}
	return ui.PromptPassword("Device password: ")
}

func renderDeployResult(res *deploy.Result) string {
	details := map[string]string{
		"Policy":   res.PolicyName,
		"State":    res.State.String(),
		"Commands": fmt.Sprintf("%d of %d executed", res.ExecutedCount(), len(res.Planned)),
		"Elapsed":  res.Elapsed.Round(time.Millisecond).String(),
	}

	switch res.State {
	case deploy.StateCommitted:
		if res.Verify != nil {
			details["Verified"] = fmt.Sprintf("%d attempt(s)", res.Verify.Attempts)
		}
		return ui.RenderSuccess("Policy committed to "+res.Host, details)

	case deploy.StateRolledBack:
		result := ui.NewWarningResult("Deployment failed, device restored: "+res.Host, details)
		if res.Err != nil {
			result.AddDetail("Cause", res.Err.Error())
		}
		if res.Verify != nil && !res.Verify.Success {
			result.AddDetail("Verification", res.Verify.Detail())
		}
		return result.Render()

	case deploy.StateRollbackFailed:
		indeterminate := make([]string, len(res.Indeterminate))
		for i, id := range res.Indeterminate {
			indeterminate[i] = id.String()
		}
		return ui.RenderFailure("Rollback failed on "+res.Host, res.RollbackErr, append(
			[]string{"Device state is indeterminate for: " + strings.Join(indeterminate, ", ")},
			"Inspect the device running-config by hand before retrying",
			"The original failure was: "+res.Err.Error(),
		))

	default:
		return ui.RenderFailure("Deployment failed on "+res.Host, res.Err, nil)
	}
}

func probeTroubleshooting(err error) []string {
	switch {
	case nxapi.IsAuthError(err):
		return []string{
			"Check the username and password",
			"Confirm the account has network-admin or dev-ops role",
		}
	case nxapi.IsTransportError(err):
		return []string{
			"Confirm the management address and port",
			"Check that the NX-API feature is enabled (feature nxapi)",
			"Try --verify-tls=false for switches with self-signed certificates",
		}
	default:
		return []string{
			"Run with NXQOS_LOG_LEVEL=debug for request-level tracing",
		}
	}
}

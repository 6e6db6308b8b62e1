package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"ttharvest/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Research API credentials",
	Long: `Manage stored TikTok Research API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (TTHARVEST_CLIENT_KEY / TTHARVEST_CLIENT_SECRET)

Never share your client secret or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [label]",
	Short: "Store Research API credentials securely",
	Long: `Store TikTok Research API credentials in the system keychain or an
encrypted file.

You will be prompted for:
  - A label for the app (if not provided)
  - Client key
  - Client secret

The client key and secret come from your approved Research API application
in the TikTok developer portal.`,
	Example: `  # Interactive login
  ttharvest auth login

  # Login with a label
  ttharvest auth login myapp`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [label]",
	Short: "Remove stored credentials",
	Long: `Remove stored Research API credentials.

If no label is provided, you will be shown a list of stored apps to choose
from. You can also remove all apps at once.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored apps",
	Long:  `List all stored Research API apps with sanitized credential information.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	var label string
	if len(args) > 0 {
		label = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if label == "" {
		fmt.Print("App label: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to read label:", err)
			os.Exit(1)
		}
		label = strings.TrimSpace(input)
	}

	if label == "" {
		fmt.Fprintln(os.Stderr, "label is required")
		os.Exit(1)
	}

	// Check if app already exists
	if existing, _ := manager.Retrieve(label); existing != nil {
		fmt.Printf("App '%s' already exists. Update credentials? (y/N): ", label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your credentials (they will be hidden as you type):")

	fmt.Print("Client key: ")
	clientKey, err := readSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read client key:", err)
		os.Exit(1)
	}
	if clientKey == "" {
		fmt.Fprintln(os.Stderr, "client key is required")
		os.Exit(1)
	}

	fmt.Print("Client secret: ")
	clientSecret, err := readSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read client secret:", err)
		os.Exit(1)
	}
	if clientSecret == "" {
		fmt.Fprintln(os.Stderr, "client secret is required")
		os.Exit(1)
	}

	app := &auth.App{
		Label:        label,
		ClientKey:    clientKey,
		ClientSecret: clientSecret,
		LastModified: time.Now(),
	}

	if err := manager.Store(app); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Printf("\nCredentials stored for app '%s'.\n", label)
	fmt.Println("\nStart collecting with:")
	fmt.Printf("  ttharvest collect --start-date 20240101 --end-date 20240107 --keywords-file keywords.txt --app %s\n", label)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	if len(args) > 0 {
		label := args[0]
		if err := manager.Delete(label); err != nil {
			fmt.Fprintln(os.Stderr, "failed to remove app:", err)
			os.Exit(1)
		}
		fmt.Println("App removed:", label)
		return
	}

	apps, err := manager.List()
	if err != nil || len(apps) == 0 {
		fmt.Fprintln(os.Stderr, "no stored apps found")
		return
	}

	reader := bufio.NewReader(os.Stdin)

	if len(apps) == 1 {
		app := apps[0]
		fmt.Printf("Remove app '%s'? (y/N): ", app.Label)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
		if err := manager.Delete(app.Label); err != nil {
			fmt.Fprintln(os.Stderr, "failed to remove app:", err)
			os.Exit(1)
		}
		fmt.Println("App removed:", app.Label)
		return
	}

	fmt.Println("Select app to remove:")
	for i, app := range apps {
		fmt.Printf("  %d. %s\n", i+1, app.Label)
	}
	fmt.Printf("  %d. Remove all apps\n", len(apps)+1)
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return
	case choice == len(apps)+1:
		fmt.Print("Remove ALL apps? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return
		}
		if err := manager.DeleteAll(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to remove all apps:", err)
			os.Exit(1)
		}
		fmt.Println("All apps removed")
	case choice > 0 && choice <= len(apps):
		app := apps[choice-1]
		if err := manager.Delete(app.Label); err != nil {
			fmt.Fprintln(os.Stderr, "failed to remove app:", err)
			os.Exit(1)
		}
		fmt.Println("App removed:", app.Label)
	default:
		fmt.Fprintln(os.Stderr, "invalid choice")
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize credential manager:", err)
		os.Exit(1)
	}

	apps, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list apps:", err)
		os.Exit(1)
	}

	if len(apps) == 0 {
		fmt.Println("No stored apps. Use 'ttharvest auth login' to add one.")
		return
	}

	fmt.Println("Stored apps:")
	fmt.Println()
	for i, app := range apps {
		sanitized := auth.SanitizeApp(app)
		fmt.Printf("%d. Label: %s\n", i+1, sanitized.Label)
		fmt.Printf("   Client Key: %s\n", sanitized.ClientKey)
		fmt.Printf("   Client Secret: %s\n", sanitized.ClientSecret)
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readSecret reads a secret from stdin without echoing
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after secret
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

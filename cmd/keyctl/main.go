// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wiener-keygen-service/config"
	"wiener-keygen-service/internal/infra"
)

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "keyctl",
		Short: "Wiener-vulnerable RSA key generator CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			infra.SetupLogger(os.Stderr, config.Load())
			if apiURL == "" {
				apiURL = os.Getenv("KEYCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set KEYCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Request timeout")

	// ローカル実行
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(attackCmd())
	// API経由
	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(challengeCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("keyctl version %s\n", config.Version)
		},
	}
}

// keyPair はAPIレスポンスの鍵ペア。
type keyPair struct {
	ID         string `json:"id"`
	Bits       int    `json:"bits"`
	E          string `json:"e"`
	N          string `json:"n"`
	D          string `json:"d"`
	Vulnerable bool   `json:"vulnerable"`
	CreatedAt  string `json:"created_at"`
}

type keyPairList struct {
	KeyPairs []keyPair `json:"key_pairs"`
}

// callAPI はAPIを呼び出し、期待したステータスならボディを返す。
func callAPI(method, path string, payload any, wantStatus int) ([]byte, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("--api-url is required (or set KEYCTL_API_URL)")
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(apiURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

func printKeyPair(w io.Writer, kp keyPair) {
	fmt.Fprintf(w, "id:         %s\n", kp.ID)
	fmt.Fprintf(w, "bits:       %d\n", kp.Bits)
	fmt.Fprintf(w, "e:          %s\n", kp.E)
	fmt.Fprintf(w, "n:          %s\n", kp.N)
	if kp.D != "" {
		fmt.Fprintf(w, "d:          %s\n", kp.D)
	}
	fmt.Fprintf(w, "vulnerable: %t\n", kp.Vulnerable)
	fmt.Fprintf(w, "created_at: %s\n", kp.CreatedAt)
}

// createCmd はサーバー上で鍵ペアを1件生成する。
func createCmd() *cobra.Command {
	var bits int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a key pair on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodPost, "/v1/keypairs", map[string]int{"bits": bits}, http.StatusCreated)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var kp keyPair
			if err := json.Unmarshal(body, &kp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("Created %d-bit key pair %s (vulnerable: %t)\n", kp.Bits, kp.ID, kp.Vulnerable)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 0, "Modulus bit length (server default when 0)")
	return cmd
}

// batchCmd はサーバー上で複数の鍵ペアを生成する。
func batchCmd() *cobra.Command {
	var bits, count int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Create several key pairs on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodPost, "/v1/keypairs/batch", map[string]int{"bits": bits, "count": count}, http.StatusCreated)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var list keyPairList
			if err := json.Unmarshal(body, &list); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			for _, kp := range list.KeyPairs {
				fmt.Println(kp.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 0, "Modulus bit length (server default when 0)")
	cmd.Flags().IntVar(&count, "count", 1, "Number of key pairs")
	return cmd
}

// getCmd は秘密指数を含む鍵ペアを取得する。
func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a key pair including its private exponent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodGet, "/v1/keypairs/"+args[0], nil, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var kp keyPair
			if err := json.Unmarshal(body, &kp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			printKeyPair(os.Stdout, kp)
			return nil
		},
	}
}

// listCmd は鍵ペア一覧を表示する。
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List key pairs",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodGet, "/v1/keypairs", nil, http.StatusOK)
			if err != nil {
				return err
			}
			if output == "json" {
				fmt.Println(string(body))
				return nil
			}
			var list keyPairList
			if err := json.Unmarshal(body, &list); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Printf("%-36s %-6s %-10s %s\n", "ID", "BITS", "VULNERABLE", "CREATED_AT")
			for _, kp := range list.KeyPairs {
				fmt.Printf("%-36s %-6d %-10t %s\n", kp.ID, kp.Bits, kp.Vulnerable, kp.CreatedAt)
			}
			return nil
		},
	}
}

// challengeCmd は攻撃ソルバー向けの課題を取得する。
func challengeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "challenge <id>",
		Short: "Print the solver challenge matrix for a key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := callAPI(http.MethodGet, "/v1/keypairs/"+args[0]+"/challenge", nil, http.StatusOK)
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
}

// deleteCmd は鍵ペアを削除する。
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a key pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := callAPI(http.MethodDelete, "/v1/keypairs/"+args[0], nil, http.StatusNoContent); err != nil {
				return err
			}
			if output == "json" {
				fmt.Println("{}")
			} else {
				fmt.Printf("Deleted key pair %s\n", args[0])
			}
			return nil
		},
	}
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("error: %s (%s)", errResp.Message, errResp.Code)
	}
	return fmt.Errorf("error: server returned status %d", statusCode)
}

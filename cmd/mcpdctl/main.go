// mcpdctl es el CLI administrativo de mcpd. Habla con la API /admin usando
// la API key estática (header X-Admin-API-Key).
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, u, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("MCPD_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("MCPD_ADMIN_KEY", "")
		out     = envOr("MCPD_OUT", "text")
	)

	root := &cobra.Command{
		Use:   "mcpdctl",
		Short: "CLI admin para mcpd (solo /admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env MCPD_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env MCPD_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env MCPD_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{OutFormat: out, HTTP: &http.Client{Timeout: 30 * time.Second}}
	// los flags se resuelven después del parseo
	cobra.OnInitialize(func() {
		cl.BaseURL = baseURL
		cl.APIKey = apiKey
		cl.OutFormat = out
	})

	// servers list
	serversCmd := &cobra.Command{
		Use:   "servers",
		Short: "Operaciones sobre servidores MCP",
	}
	serversCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lista los servidores MCP activos",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/admin/servers", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})
	serversCmd.AddCommand(&cobra.Command{
		Use:   "clients <server-id>",
		Short: "Lista los clientes con acceso a un servidor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/admin/servers/"+url.PathEscape(args[0])+"/clients", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	})

	// grants
	var grantScopes []string
	grantCmd := &cobra.Command{
		Use:   "grant <server-id> <client-id>",
		Short: "Concede a un cliente acceso a un servidor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			if len(grantScopes) > 0 {
				body, _ = json.Marshal(map[string][]string{"scopes": grantScopes})
			}
			path := "/admin/servers/" + url.PathEscape(args[0]) + "/clients/" + url.PathEscape(args[1])
			status, respBody, err := cl.do("POST", path, body)
			if err != nil {
				return err
			}
			cl.print(status, respBody)
			return nil
		},
	}
	grantCmd.Flags().StringSliceVar(&grantScopes, "scope", nil, "scopes del grant (repetible)")

	revokeCmd := &cobra.Command{
		Use:   "revoke <server-id> <client-id>",
		Short: "Revoca el acceso de un cliente a un servidor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/admin/servers/" + url.PathEscape(args[0]) + "/clients/" + url.PathEscape(args[1])
			status, body, err := cl.do("DELETE", path, nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	rotateCmd := &cobra.Command{
		Use:   "rotate-secret <client-id>",
		Short: "Rota el client_secret de un cliente (el anterior deja de valer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("POST", "/admin/clients/"+url.PathEscape(args[0])+"/rotate-secret", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	root.AddCommand(serversCmd, grantCmd, revokeCmd, rotateCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

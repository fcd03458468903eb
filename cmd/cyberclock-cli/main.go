// cyberclock-cli はデバイス認可フローでログインし、
// カウンターAPIを操作する非対話クライアント。
//
// 使い方:
//
//	cyberclock-cli -server http://localhost:8080 login [-provider github|google]
//	cyberclock-cli -server http://localhost:8080 -token <access_token> get|increment|decrement
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cyberclock/server/internal/model"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "APIサーバーのURL")
	token := flag.String("token", os.Getenv("CYBERCLOCK_TOKEN"), "アクセストークン（loginで取得）")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: cyberclock-cli [flags] login|get|increment|decrement")
		os.Exit(2)
	}

	client := &cliClient{
		serverURL: *serverURL,
		token:     *token,
		http:      &http.Client{Timeout: 30 * time.Second},
	}

	ctx := context.Background()

	var err error
	switch args[0] {
	case "login":
		loginFlags := flag.NewFlagSet("login", flag.ExitOnError)
		provider := loginFlags.String("provider", "google", "認証プロバイダー（github または google）")
		loginFlags.Parse(args[1:])
		err = client.login(ctx, *provider)
	case "get":
		err = client.counter(ctx, http.MethodGet, "/api/v1/counter")
	case "increment":
		err = client.counter(ctx, http.MethodPost, "/api/v1/counter/increment")
	case "decrement":
		err = client.counter(ctx, http.MethodPost, "/api/v1/counter/decrement")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cliClient struct {
	serverURL string
	token     string
	http      *http.Client
}

// devicePollResponse はサーバーのポーリング代行エンドポイントのレスポンス。
type devicePollResponse struct {
	Status           string `json:"status"`
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// login はデバイス認可フローでログインし、取得したアクセストークンを表示する。
// ポーリングのループと間隔管理はこのクライアントが所有する。
func (c *cliClient) login(ctx context.Context, provider string) error {
	// 1. デバイスコードの発行
	var authz model.DeviceAuthorization
	if err := c.postJSON(ctx, "/auth/device/initiate", map[string]string{"provider": provider}, &authz); err != nil {
		return fmt.Errorf("デバイスフローの開始に失敗しました: %w", err)
	}

	fmt.Printf("次のURLをブラウザで開いてコードを入力してください:\n\n")
	fmt.Printf("  %s\n\n", authz.VerificationURI)
	fmt.Printf("  コード: %s\n\n", authz.UserCode)
	fmt.Println("承認を待っています...")

	// 2. 承認されるまでポーリング
	interval := authz.Interval
	if interval <= 0 {
		interval = 5
	}
	deadline := time.Now().Add(time.Duration(authz.ExpiresIn) * time.Second)

	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("デバイスコードの有効期限が切れました。最初からやり直してください")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(interval) * time.Second):
		}

		var poll devicePollResponse
		status, err := c.postJSONStatus(ctx, "/auth/device/poll", map[string]string{
			"provider":    provider,
			"device_code": authz.DeviceCode,
		}, &poll)
		if err != nil {
			return fmt.Errorf("ポーリングに失敗しました: %w", err)
		}

		switch poll.Status {
		case "approved":
			fmt.Println("ログインに成功しました。")
			fmt.Printf("\nアクセストークン:\n\n  %s\n\n", poll.AccessToken)
			fmt.Println("環境変数 CYBERCLOCK_TOKEN に設定するか、-token フラグで指定してください。")
			return nil
		case "pending":
			// interval秒後に再試行（上のselectで待機済み）
		case "slow_down":
			interval += 5
		default:
			if status == http.StatusBadRequest {
				return fmt.Errorf("認証が完了できませんでした: %s（%s）", poll.Error, poll.ErrorDescription)
			}
			return fmt.Errorf("予期しないポーリング結果: %s", poll.Status)
		}
	}
}

// counter はカウンターAPIを呼び出し、現在値を表示する。
func (c *cliClient) counter(ctx context.Context, method, path string) error {
	if c.token == "" {
		return fmt.Errorf("アクセストークンが必要です。先に login を実行してください")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("認証に失敗しました。トークンの有効期限が切れている可能性があります")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("サーバーがステータス %d を返しました", resp.StatusCode)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}

	fmt.Printf("count: %d\n", body.Count)
	return nil
}

// postJSON はJSONボディをPOSTし、2xx以外をエラーとして扱う。
func (c *cliClient) postJSON(ctx context.Context, path string, body, out any) error {
	status, err := c.postJSONStatus(ctx, path, body, out)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("サーバーがステータス %d を返しました", status)
	}
	return nil
}

// postJSONStatus はJSONボディをPOSTし、ステータスコードとデコード結果を返す。
// デバイスフローの最終状態（400）もボディを解析する必要があるため、
// ステータスコードによるエラー化は呼び出し側に委ねる。
func (c *cliClient) postJSONStatus(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
		}
	}

	return resp.StatusCode, nil
}

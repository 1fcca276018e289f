package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient()
	httpClient, ok := client.(*HTTPClient)
	require.True(t, ok)
	assert.Zero(t, httpClient.client.Timeout)
	assert.Equal(t, defaultTimeout, httpClient.timeout)
}

func TestHTTPClient_DoHTTPRequest_Timeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		timeout    time.Duration
		wantErrMsg string
	}{
		{name: "未设置时使用默认超时", wantErrMsg: "context deadline exceeded"},
		{name: "请求超时大于默认超时", timeout: 2 * time.Second},
		{name: "请求超时小于默认超时", timeout: 20 * time.Millisecond, wantErrMsg: "context deadline exceeded"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(150 * time.Millisecond)
				_, _ = w.Write([]byte("ok"))
			}))
			defer server.Close()

			// 默认超时 50ms, 服务端 150ms 才返回
			c := &HTTPClient{client: &http.Client{}, timeout: 50 * time.Millisecond}
			var got []byte
			err := c.DoHTTPRequest(context.Background(), &RequestParam{
				Method:     http.MethodGet,
				RequestURI: server.URL,
				Response:   &got,
				Timeout:    tt.timeout,
			})
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", string(got))
		})
	}
}

func TestHTTPClient_DoHTTPRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		requestParam *RequestParam
		handler      http.HandlerFunc
		wantErrMsg   string
	}{
		{
			name:         "GET 成功",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				_, _ = w.Write([]byte(`{"message": "success"}`))
			},
		},
		{
			name: "POST JSON body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   map[string]interface{}{"key": "value"},
				Header: map[string]string{"Content-Type": "application/json"},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				var data map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&data))
				assert.Equal(t, "value", data["key"])
			},
		},
		{
			name: "POST []byte body 原样发送",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   []byte(`{"prompt": 1}`),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, `{"prompt": 1}`, string(body))
			},
		},
		{
			name: "POST io.Reader body",
			requestParam: &RequestParam{
				Method: http.MethodPost,
				Body:   strings.NewReader("reader body"),
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "reader body", string(body))
			},
		},
		{
			name:         "服务器返回错误状态码",
			requestParam: &RequestParam{Method: http.MethodGet},
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("upstream down"))
			},
			wantErrMsg: "HTTP request failed with status 502: upstream down",
		},
		{
			name:         "请求超时",
			requestParam: &RequestParam{Method: http.MethodGet, Timeout: 50 * time.Millisecond},
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
			},
			wantErrMsg: "context deadline exceeded",
		},
		{
			name:         "请求参数为nil",
			requestParam: nil,
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantErrMsg:   "request param is nil",
		},
		{
			name:         "无效的URL",
			requestParam: &RequestParam{Method: http.MethodGet, RequestURI: "://invalid-url"},
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantErrMsg:   "missing protocol scheme",
		},
		{
			name:         "JSON序列化失败",
			requestParam: &RequestParam{Method: http.MethodPost, Body: make(chan int)},
			handler:      func(w http.ResponseWriter, r *http.Request) {},
			wantErrMsg:   "json: unsupported type: chan int",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()
			if tt.requestParam != nil && tt.requestParam.RequestURI == "" {
				tt.requestParam.RequestURI = server.URL
			}

			err := NewHTTPClient().DoHTTPRequest(context.Background(), tt.requestParam)
			if tt.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHTTPClient_DoHTTPRequest_RawResponse(t *testing.T) {
	t.Parallel()

	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var got []byte
	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodPost,
		RequestURI: server.URL,
		Response:   &got,
	})
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHTTPClient_DoHTTPRequest_JSONResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "my_image1.png", "subfolder": "", "type": "input"}`))
	}))
	defer server.Close()

	var resp struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	err := NewHTTPClient().DoHTTPRequest(context.Background(), &RequestParam{
		Method:     http.MethodGet,
		RequestURI: server.URL,
		Response:   &resp,
	})
	require.NoError(t, err)
	assert.Equal(t, "my_image1.png", resp.Name)
	assert.Equal(t, "input", resp.Type)
}

func TestHTTPClient_DoHTTPRequest_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := NewHTTPClient().DoHTTPRequest(ctx, &RequestParam{Method: http.MethodGet, RequestURI: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

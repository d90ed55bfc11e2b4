package runtimeapi

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	return New(host, port, 5*time.Second)
}

func TestInvokeSuccess(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, InvocationPath, r.URL.Path)
		w.Write([]byte(`{"statusCode": 200, "body": "Success"}`))
	}))

	res, err := client.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.TransportStatus)
	require.Equal(t, http.StatusOK, res.HandlerStatus)
	require.True(t, res.Success())
}

func TestInvokeHandlerReportsFailureInBody(t *testing.T) {
	// The handler reports its failures as a 500 inside the response body
	// while the emulator's transport status stays 200.
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"statusCode": 500, "body": "Error Processing File"}`))
	}))

	res, err := client.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.TransportStatus)
	require.Equal(t, http.StatusInternalServerError, res.HandlerStatus)
	require.False(t, res.Success())
}

func TestInvokeFunctionError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errorType": "Runtime.ImportModuleError", "errorMessage": "Unable to import module"}`))
	}))

	res, err := client.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "Runtime.ImportModuleError", res.ErrorType)
	require.False(t, res.Success())
}

func TestInvokeNonJSONBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	res, err := client.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.TransportStatus)
	require.Zero(t, res.HandlerStatus)
	require.True(t, res.Success())
}

func TestResultSuccess(t *testing.T) {
	require.True(t, Result{TransportStatus: 200}.Success())
	require.True(t, Result{TransportStatus: 200, HandlerStatus: 200}.Success())
	require.False(t, Result{TransportStatus: 500}.Success())
	require.False(t, Result{TransportStatus: 200, HandlerStatus: 500}.Success())
	require.False(t, Result{TransportStatus: 200, ErrorType: "Unhandled"}.Success())
}

func TestWaitReady(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	require.NoError(t, client.WaitReady(context.Background(), 3, 10*time.Millisecond))
}

func TestWaitReadyGivesUp(t *testing.T) {
	// Reserve a port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	client := New("127.0.0.1", port, time.Second)
	err = client.WaitReady(context.Background(), 2, 10*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not ready")
}

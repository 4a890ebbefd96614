package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Authorize runs the installed-app consent flow for mirror: it listens on a
// loopback port, prints the consent URL to out and waits for Google to
// redirect back with a code.
func (a *Authorizer) Authorize(ctx context.Context, mirror string, out io.Writer) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for oauth callback: %w", err)
	}
	redirectURL := "http://" + ln.Addr().String() + "/"

	state, err := randomState()
	if err != nil {
		ln.Close()
		return err
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			case q.Get("error") != "":
				http.Error(w, "authorization denied", http.StatusForbidden)
				select {
				case errs <- fmt.Errorf("authorization denied: %s", q.Get("error")):
				default:
				}
				return
			}
			fmt.Fprintln(w, "kal is authorized, you can close this window.")
			select {
			case codes <- q.Get("code"):
			default:
			}
		}),
	}
	go srv.Serve(ln)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	fmt.Fprintf(out, "Open this URL in a browser to authorize %q:\n\n%s\n\n", mirror, a.AuthURL(state, redirectURL))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errs:
		return err
	case code := <-codes:
		if code == "" {
			return errors.New("authorization callback without a code")
		}
		return a.Exchange(ctx, mirror, code, redirectURL)
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

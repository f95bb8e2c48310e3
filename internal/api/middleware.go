package api

import (
	"fmt"
	"net/http"
)

func (s *GoChatApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			// the server uses this sentinel to abort a response on purpose
			if err == http.ErrAbortHandler {
				panic(err)
			}

			var panicError error
			switch e := err.(type) {
			case error:
				panicError = e
			default:
				panicError = fmt.Errorf("%v", e)
			}
			s.log.Printf("panic: %v (%s %s)", panicError, r.Method, r.URL.Path)
			errResp := NewInternalServerError(panicError)
			w.Header().Set("Connection", "close")
			s.writeJson(w, errResp.StatusCode, errResp)
		}()

		next.ServeHTTP(w, r)
	})
}

// redactToken masks the ?token= value in the request line seen by the
// access log. Handlers still read the real value from r.URL.
func redactToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has(tokenQueryKey) {
			next.ServeHTTP(w, r)
			return
		}

		q.Set(tokenQueryKey, "redacted")
		r = r.WithContext(r.Context())
		r.RequestURI = r.URL.EscapedPath() + "?" + q.Encode()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the session token to a user id and stores it in
// the request context. Requests without a valid token never reach next.
func (s *GoChatApp) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticate(next, false)
}

// wsAuthMiddleware is authMiddleware for the websocket handshake, where
// browsers cannot set headers and the token may come as ?token=.
func (s *GoChatApp) wsAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return s.authenticate(next, true)
}

func (s *GoChatApp) authenticate(next http.HandlerFunc, allowQuery bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := tokenFromRequest(r, allowQuery)
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		userId, err := s.extractUserIdFromToken(tokenString)
		if err != nil {
			s.log.Printf("failed to extract user id from token: %v", err)
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithUserId(r.Context(), userId)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

package acceptance

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/bappy/identity-service/internal/dto"
)

// noRedirectClient keeps the 302 so tests can inspect the Location header.
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func (s *Suite) oauth2Callback(provider string, attributes map[string]any) *http.Response {
	body, _ := json.Marshal(dto.OAuth2CallbackRequest{Attributes: attributes})

	req, _ := http.NewRequest("POST", s.BaseURL+"/api/v1/oauth2/callback/"+provider, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := noRedirectClient.Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *Suite) redirectParam(resp *http.Response, key string) string {
	location, err := resp.Location()
	s.Require().NoError(err)
	return location.Query().Get(key)
}

func (s *Suite) exchangeToken(token string) *http.Response {
	body, _ := json.Marshal(dto.OAuth2TokenRequest{Token: token})

	resp, err := http.Post(
		s.BaseURL+"/api/v1/auth/oauth2/token",
		"application/json",
		bytes.NewBuffer(body),
	)
	s.Require().NoError(err)
	return resp
}

func googleProfile(email string) map[string]any {
	return map[string]any{
		"sub":         "109876543210",
		"email":       email,
		"given_name":  "Ada",
		"family_name": "Lovelace",
	}
}

func (s *Suite) TestOAuth2Callback_NewUser() {
	resp := s.oauth2Callback("google", googleProfile("oauth@example.com"))
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)

	location, err := resp.Location()
	s.Require().NoError(err)
	s.Equal("/oauth2/redirect", location.Path)
	s.NotEmpty(location.Query().Get("token"))
	s.Empty(location.Query().Get("error"))

	// The provider-verified account is created active
	var status string
	var verified bool
	err = s.Postgres.DB.QueryRow(
		`SELECT status, email_verified FROM users WHERE email = $1`, "oauth@example.com",
	).Scan(&status, &verified)
	s.Require().NoError(err)
	s.Equal("ACTIVE", status)
	s.True(verified)
}

func (s *Suite) TestOAuth2Callback_UnsupportedProvider() {
	resp := s.oauth2Callback("twitter", googleProfile("oauth@example.com"))
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("authentication_failed", s.redirectParam(resp, "error"))
}

func (s *Suite) TestOAuth2Exchange_Success() {
	callbackResp := s.oauth2Callback("google", googleProfile("exchange@example.com"))
	defer callbackResp.Body.Close()

	token := s.redirectParam(callbackResp, "token")
	s.Require().NotEmpty(token)

	resp := s.exchangeToken(token)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var authResp dto.AuthResponse
	err := json.NewDecoder(resp.Body).Decode(&authResp)
	s.Require().NoError(err)

	s.NotEmpty(authResp.AccessToken)
	s.NotEmpty(authResp.RefreshToken)
	s.Equal("exchange@example.com", authResp.User.Email)
	s.NotEmpty(resp.Cookies(), "Should have refresh token cookie")
}

func (s *Suite) TestOAuth2Exchange_Replay() {
	callbackResp := s.oauth2Callback("google", googleProfile("replay@example.com"))
	defer callbackResp.Body.Close()

	token := s.redirectParam(callbackResp, "token")

	first := s.exchangeToken(token)
	first.Body.Close()
	s.Equal(http.StatusOK, first.StatusCode)

	// The redirect token is single-use
	second := s.exchangeToken(token)
	defer second.Body.Close()
	s.Equal(http.StatusUnauthorized, second.StatusCode)
}

func (s *Suite) TestOAuth2Exchange_ConcurrentSingleWinner() {
	resp := s.oauth2Callback("google", googleProfile("oauth@example.com"))
	defer resp.Body.Close()
	token := s.redirectParam(resp, "token")
	s.Require().NotEmpty(token)

	const racers = 4
	statuses := make([]int, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := s.exchangeToken(token)
			defer r.Body.Close()
			statuses[i] = r.StatusCode
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, status := range statuses {
		if status == http.StatusOK {
			winners++
			continue
		}
		s.Equal(http.StatusUnauthorized, status)
	}
	s.Equal(1, winners)
}

func (s *Suite) TestOAuth2Exchange_GarbageToken() {
	resp := s.exchangeToken("not-a-token")
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestOAuth2Callback_LinksLocalAccount() {
	registerResp := s.signup("linked@example.com", "Password123")
	registerResp.Body.Close()

	resp := s.oauth2Callback("google", googleProfile("linked@example.com"))
	defer resp.Body.Close()

	s.Equal(http.StatusFound, resp.StatusCode)
	s.NotEmpty(s.redirectParam(resp, "token"))

	// Linked in place, not duplicated; the password survives
	var count int
	err := s.Postgres.DB.QueryRow(
		`SELECT COUNT(*) FROM users WHERE email = $1`, "linked@example.com",
	).Scan(&count)
	s.Require().NoError(err)
	s.Equal(1, count)

	var provider string
	var passwordHash *string
	err = s.Postgres.DB.QueryRow(
		`SELECT provider, password_hash FROM users WHERE email = $1`, "linked@example.com",
	).Scan(&provider, &passwordHash)
	s.Require().NoError(err)
	s.Equal("GOOGLE", provider)
	s.NotNil(passwordHash)
}

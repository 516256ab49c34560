// Package jwt verifies HMAC-signed bearer tokens and extracts them from
// HTTP requests.
//
// Tokens are parsed and validated with lestrrat-go/jwx. The "sub" claim is
// the username and the "user_id" claim the user id:
//
//	v, err := jwt.NewVerifier(key, jwt.AlgHS256)
//	claims, err := v.Verify(ctx, token)
package jwt

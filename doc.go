// Package auth provides email and password accounts with stateless HS256
// JWT access and refresh tokens.
//
// Tokens:
//   - TokenIssuer mints access tokens (short lived, no scope) and refresh
//     tokens (scope "refresh"). Every token carries sub, iss, aud, iat, nbf,
//     exp and a random jti.
//   - TokenVerifier checks signature, required claims, the exp/nbf window
//     with leeway, issuer and audience, then resolves the subject through an
//     AccountResolver. Scope is not checked, so a refresh token is accepted
//     as a bearer token.
//   - RefreshFlow exchanges a refresh token for a new access token and hands
//     the same refresh token back. There is no rotation or revocation.
//
// Credentials:
//   - PasswordHasher produces passlib compatible bcrypt_sha256 hashes and
//     verifies legacy bcrypt hashes. Weak or legacy hashes are upgraded on
//     login.
//
// Errors:
//   - Every failure is a *goerrors.Error whose TextCode is a Kind. KindOf and
//     ClassOf recover the kind and its status class; MakeErrorHandler maps
//     them to JSON responses.
//
// Extension points:
//   - ActivitySink receives login, registration, refresh and password
//     change events. Sinks run best-effort.
//   - ClaimsDecorator adds private claims to login access tokens. Reserved
//     claim names are dropped.
package auth

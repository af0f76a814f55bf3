// Package academia holds the session and access control core of the
// tutoring marketplace.
//
// Session flow:
//   - AuthClient wraps the auth backend and publishes identity changes to
//     subscribers. Sign up and first federated sign in create the users/{uid}
//     profile with the apprentice role, read before write.
//   - SessionStore subscribes to an IdentitySource and serializes every
//     change through one loop. Role lookups run through a RoleResolver and
//     carry the uid and generation they were issued for, so a slow lookup
//     never overwrites a newer identity.
//   - ProfileResolver reads the role from the profile document as the
//     current caller. A rejected read is reported as ErrPermissionDenied and
//     the store turns it into an advisory instead of failing.
//
// Access control:
//   - Guard implementations map a Session snapshot to a Decision.
//     AuthenticatedGuard admits any signed in identity, RoleGuard requires a
//     role. Errored sessions never open protected content.
//   - Gate binds a guard to a store and re-evaluates on every change.
package academia

// Package identity is the authentication collaborator.
//
// A Directory checks credentials. A Session holds the sign-in state of one
// client and streams principal changes to listeners: the current state is
// delivered on Subscribe, then again on every SignIn and SignOut. A nil
// *Principal means nobody is signed in.
package identity

// Package client is the cracklab Go SDK.
//
// # Submitting an answer
//
//	c := client.MustNew("https://lab.example.edu")
//	res, err := c.Submit(ctx, "c1", "hunter2")
//	if err != nil {
//	    log.Fatal(err) // bad request, unknown challenge, or server fault
//	}
//	if !res.Correct {
//	    fmt.Println(res.Message) // "Not correct"
//	}
//
// Resubmitting a correct answer is safe: the server returns the original
// receipt with FirstSuccess set to false.
//
// # Operator calls
//
// Admin endpoints need a Bearer token. WithAdminSecret exchanges the static
// admin secret for a token on first use and refreshes it before expiry:
//
//	c, err := client.New("https://lab.example.edu", client.WithAdminSecret(secret))
//	ch, err := c.CreateChallenge(ctx, client.CreateChallengeRequest{
//	    StudentID: "s1", AssignmentID: "lab1", Answer: "hunter2",
//	})
//
// Errors from non-2xx responses are *APIError values; IsNotFound checks for 404.
package client

// cmd/tribctl is the CLI for the front-end service, built with Cobra.
//
// Usage:
//
//	tribctl sign-up alice              --server localhost:9000
//	tribctl post alice "hello world"   --server localhost:9000
//	tribctl follow alice bob           --server localhost:9000
//	tribctl home alice                 --server localhost:9000
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tribbler/internal/client"
	"tribbler/internal/front"
)

var serverAddr string

func main() {
	root := &cobra.Command{
		Use:   "tribctl",
		Short: "CLI client for the Tribbler front-end",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"localhost:9000", "front-end server address")

	root.AddCommand(signUpCmd(), usersCmd(), postCmd(), tribsCmd(),
		followCmd(), unfollowCmd(), isFollowingCmd(), followingCmd(), homeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printTribs(tribs []*front.Trib) {
	for _, t := range tribs {
		ts := time.Unix(int64(t.Time), 0).UTC().Format(time.RFC3339)
		fmt.Printf("%s %s: %s\n", ts, t.User, t.Message)
	}
}

// ─── sign-up ──────────────────────────────────────────────────────────────────

func signUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign-up <user>",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			if err := c.SignUp(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("signed up %q\n", args[0])
			return nil
		},
	}
}

// ─── users ────────────────────────────────────────────────────────────────────

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			users, err := c.ListUsers(context.Background())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Println(u)
			}
			return nil
		},
	}
}

// ─── post ─────────────────────────────────────────────────────────────────────

func postCmd() *cobra.Command {
	var clock uint64
	cmd := &cobra.Command{
		Use:   "post <user> <message>",
		Short: "Post a trib",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			return c.Post(context.Background(), args[0], args[1], clock)
		},
	}
	cmd.Flags().Uint64Var(&clock, "clock", 0, "highest clock value seen so far")
	return cmd
}

// ─── tribs ────────────────────────────────────────────────────────────────────

func tribsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tribs <user>",
		Short: "Show a user's timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			tribs, err := c.Tribs(context.Background(), args[0])
			if err != nil {
				return err
			}
			printTribs(tribs)
			return nil
		},
	}
}

// ─── follow / unfollow ────────────────────────────────────────────────────────

func followCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <who> <whom>",
		Short: "Follow a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			return c.Follow(context.Background(), args[0], args[1])
		},
	}
}

func unfollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <who> <whom>",
		Short: "Unfollow a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			return c.Unfollow(context.Background(), args[0], args[1])
		},
	}
}

func isFollowingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "is-following <who> <whom>",
		Short: "Check whether who follows whom",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			following, err := c.IsFollowing(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(strconv.FormatBool(following))
			return nil
		},
	}
}

func followingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "following <who>",
		Short: "List the users who follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			users, err := c.Following(context.Background(), args[0])
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Println(u)
			}
			return nil
		},
	}
}

// ─── home ─────────────────────────────────────────────────────────────────────

func homeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "home <user>",
		Short: "Show a user's merged home timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewFront(serverAddr)
			tribs, err := c.Home(context.Background(), args[0])
			if err != nil {
				return err
			}
			printTribs(tribs)
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/foomo/helpboard/client"
	"github.com/foomo/helpboard/post"
	"github.com/foomo/helpboard/requests"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func NewPostCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:       "post <need|offer> <description>",
		Short:     "Post a need or an offer",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(post.KindNeed), string(post.KindOffer)},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd, v)
			if err != nil {
				return err
			}
			defer c.ShutDown()

			created, err := c.CreatePost(cmd.Context(), &requests.CreatePost{
				Type:        post.Kind(args[0]),
				Name:        v.GetString("name"),
				Category:    categoryFlag(v),
				City:        v.GetString("city"),
				Description: args[1],
			})
			if err != nil {
				return err
			}
			zap.L().Debug("post created", zap.String("id", created.ID))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", created.ID, created.Type, created.Category, created.City)
			return err
		},
	}

	flags := cmd.Flags()
	addServerFlag(flags, v)
	addTokenFlag(flags, v)
	addCategoryFlag(flags, v, post.DefaultCategory(), "Category of the post")
	addNameFlag(flags, v)
	addCityFlag(flags, v)

	return cmd
}

func addNameFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("name", "", "Display name")
	_ = v.BindPFlag("name", flags.Lookup("name"))
	_ = v.BindEnv("name", "HELPBOARD_NAME")
}

func addCityFlag(flags *pflag.FlagSet, v *viper.Viper) {
	flags.String("city", "", "City the post is about")
	_ = v.BindPFlag("city", flags.Lookup("city"))
	_ = v.BindEnv("city", "HELPBOARD_CITY")
}

// newClient connects to the configured server and makes sure writes are authorized
func newClient(cmd *cobra.Command, v *viper.Viper) (*client.Client, error) {
	c, err := client.NewHTTPClient(serverFlag(v))
	if err != nil {
		return nil, err
	}
	if token := tokenFlag(v); token != "" {
		c.SetToken(token)
		return c, nil
	}
	identity, err := c.SignIn(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "signed in as %s, reuse with HELPBOARD_TOKEN=%s\n", identity.UID, identity.Token)
	return c, nil
}

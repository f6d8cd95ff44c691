package main

import (
	"bufio"
	"fmt"

	"github.com/soypat/dissect/token"
	"github.com/spf13/cobra"
)

func tokensCmd(gf *globalFlags) *cobra.Command {
	var dynamic bool
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List the static token vocabulary",
		Long: `List the static token table. With --dynamic the bundled decoders are
registered first and the names they intern are listed as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := bufio.NewWriter(cmd.OutOrStdout())
			defer out.Flush()
			for t := token.Token(0); t < token.StaticLen; t++ {
				name, _ := token.StaticName(t)
				fmt.Fprintf(out, "%4d %q\n", uint64(t), name)
			}
			if !dynamic {
				return nil
			}
			e, err := newEnv(gf)
			if err != nil {
				return err
			}
			defer e.close()
			reg := e.session.Tokens()
			for i := 0; i < reg.Len(); i++ {
				t := token.StaticLen + token.Token(i)
				fmt.Fprintf(out, "%4d %q\n", uint64(t), reg.Name(t))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dynamic, "dynamic", false, "also list tokens interned by the bundled decoders")
	return cmd
}

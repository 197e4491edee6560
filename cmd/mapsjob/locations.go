package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Args:  cobra.NoArgs,
		Short: "List the countries available for location searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			countries, err := a.catalog.Countries(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range countries {
				fmt.Println(c)
			}
			return nil
		},
	}
}

func newCitiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cities <country>",
		Args:  cobra.ExactArgs(1),
		Short: "List the cities available for a country",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := a.catalog.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(resolved.Cities) == 0 {
				fmt.Printf("No cities listed for %s\n", resolved.Country)
				return nil
			}
			for _, c := range resolved.Cities {
				fmt.Println(c)
			}
			return nil
		},
	}
}

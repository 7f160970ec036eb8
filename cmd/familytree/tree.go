package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"familytree/application/commands"
	"familytree/application/commands/bus"
	"familytree/application/tree"
	"familytree/domain/core/entities"
	"familytree/domain/core/valueobjects"
)

type personView struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	Surname    string  `json:"surname,omitempty" yaml:"surname,omitempty"`
	Gender     string  `json:"gender,omitempty" yaml:"gender,omitempty"`
	Mother     string  `json:"mother,omitempty" yaml:"mother,omitempty"`
	Father     string  `json:"father,omitempty" yaml:"father,omitempty"`
	Spouse     string  `json:"spouse,omitempty" yaml:"spouse,omitempty"`
	Generation int     `json:"generation" yaml:"generation"`
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
}

type connectionView struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Kind string `json:"kind" yaml:"kind"`
}

type treeView struct {
	Persons     []personView     `json:"persons" yaml:"persons"`
	Connections []connectionView `json:"connections" yaml:"connections"`
	Hidden      []string         `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	LineOnly    []string         `json:"lineOnly,omitempty" yaml:"lineOnly,omitempty"`
}

// buildView collects the tree as the inspect command prints it
func (a *app) buildView(ctx context.Context) treeView {
	t := a.container.Tree
	family := t.Family()
	generations := t.Generations(ctx).Generations
	nodes := a.container.Renderer.Nodes()

	var view treeView
	for _, id := range family.IDs() {
		p, _ := family.GetPerson(id)
		node := nodes[id]
		view.Persons = append(view.Persons, personView{
			ID:         id.String(),
			Name:       p.Name,
			Surname:    p.Surname,
			Gender:     p.Gender.String(),
			Mother:     p.MotherID.String(),
			Father:     p.FatherID.String(),
			Spouse:     p.SpouseID.String(),
			Generation: generations[id],
			X:          node.X,
			Y:          node.Y,
		})
	}
	for _, c := range t.Connections() {
		view.Connections = append(view.Connections, connectionView{
			From: c.From.String(),
			To:   c.To.String(),
			Kind: string(c.Kind),
		})
	}
	for _, k := range t.HiddenConnections() {
		view.Hidden = append(view.Hidden, k.String())
	}
	for _, k := range t.LineOnlyConnections() {
		view.LineOnly = append(view.LineOnly, k.String())
	}
	return view
}

func writeView(w io.Writer, format string, view treeView) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tGENDER\tGEN\tMOTHER\tFATHER\tSPOUSE")
		for _, p := range view.Persons {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				p.ID, fullName(p.Name, p.Surname), p.Gender, p.Generation,
				dash(p.Mother), dash(p.Father), dash(p.Spouse))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d connections, %d hidden, %d line-only\n",
			len(view.Connections), len(view.Hidden), len(view.LineOnly))
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
}

func (a *app) inspectCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show persons, relations and generated connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.container.Load(cmd.Context())
			return writeView(cmd.OutOrStdout(), format, a.buildView(cmd.Context()))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, yaml")
	return cmd
}

func (a *app) generationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generations",
		Short: "Group persons by generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			report := a.container.Tree.Generations(ctx)
			family := a.container.Tree.Family()
			out := cmd.OutOrStdout()

			groups := report.Generations.ByGeneration()
			for gen := 0; gen <= report.Generations.Max(); gen++ {
				fmt.Fprintf(out, "Generation %d:\n", gen)
				for _, id := range groups[gen] {
					p, _ := family.GetPerson(id)
					fmt.Fprintf(out, "  %s  %s\n", id, fullName(p.Name, p.Surname))
				}
			}
			if report.FallbackRoot {
				fmt.Fprintln(out, "No person without parents; generations start at the first person.")
			}
			if report.HasCycles() {
				fmt.Fprintf(out, "Ancestry cycles cut at: %v\n", report.CycleCuts)
			}
			return nil
		},
	}
}

// personFlags binds the person form to flags
func personFlags(cmd *cobra.Command, in *tree.PersonInput) {
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "Given name")
	f.StringVar(&in.Surname, "surname", "", "Surname")
	f.StringVar(&in.MaidenName, "maiden-name", "", "Maiden name")
	f.StringVar(&in.FatherName, "father-name", "", "Patronymic")
	f.StringVar(&in.DOB, "dob", "", "Date of birth")
	f.StringVar(&in.Gender, "gender", "", "Gender: male, female, unspecified")
	f.StringVar(&in.MotherID, "mother", "", "Mother's id")
	f.StringVar(&in.FatherID, "father", "", "Father's id")
	f.StringVar(&in.SpouseID, "spouse", "", "Spouse's id")
	f.StringVar(&in.Color, "color", "", "Node color, e.g. #3498db")
	f.Float64Var(&in.Radius, "radius", 0, "Node radius")
}

func (a *app) addCmd() *cobra.Command {
	var in tree.PersonInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			id, err := bus.SendFor[valueobjects.PersonID](ctx, a.container.Commands, commands.AddPersonCommand{Person: in})
			if err != nil {
				return err
			}
			if err := a.save(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	personFlags(cmd, &in)
	cmd.Flags().Float64Var(&in.X, "x", 0, "Node x position")
	cmd.Flags().Float64Var(&in.Y, "y", 0, "Node y position")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var in tree.PersonInput
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a person; fields without a flag keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			current, ok := a.container.Tree.Person(valueobjects.PersonID(args[0]))
			if !ok {
				return fmt.Errorf("person %s not found", args[0])
			}
			merged := inputFrom(current)
			overlay(cmd, &merged, in)

			if err := a.send(ctx, commands.UpdatePersonCommand{PersonID: args[0], Person: merged}); err != nil {
				return err
			}
			return a.save(ctx)
		},
	}
	personFlags(cmd, &in)
	return cmd
}

// inputFrom fills a form from a stored person
func inputFrom(p entities.Person) tree.PersonInput {
	return tree.PersonInput{
		Name:       p.Name,
		Surname:    p.Surname,
		MaidenName: p.MaidenName,
		FatherName: p.FatherName,
		DOB:        p.DOB,
		Gender:     p.Gender.String(),
		MotherID:   p.MotherID.String(),
		FatherID:   p.FatherID.String(),
		SpouseID:   p.SpouseID.String(),
	}
}

// overlay copies the fields whose flag was set from in onto dst
func overlay(cmd *cobra.Command, dst *tree.PersonInput, in tree.PersonInput) {
	set := cmd.Flags().Changed
	fields := []struct {
		flag string
		dst  *string
		src  string
	}{
		{"name", &dst.Name, in.Name},
		{"surname", &dst.Surname, in.Surname},
		{"maiden-name", &dst.MaidenName, in.MaidenName},
		{"father-name", &dst.FatherName, in.FatherName},
		{"dob", &dst.DOB, in.DOB},
		{"gender", &dst.Gender, in.Gender},
		{"mother", &dst.MotherID, in.MotherID},
		{"father", &dst.FatherID, in.FatherID},
		{"spouse", &dst.SpouseID, in.SpouseID},
		{"color", &dst.Color, in.Color},
	}
	for _, f := range fields {
		if set(f.flag) {
			*f.dst = f.src
		}
	}
	if set("radius") {
		dst.Radius = in.Radius
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a person; relations pointing at them are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			if err := a.send(ctx, commands.DeletePersonCommand{PersonID: args[0]}); err != nil {
				return err
			}
			return a.save(ctx)
		},
	}
}

func (a *app) relateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relate <id> <mother|father|spouse> [target]",
		Short: "Set a relation, or clear it when no target is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			c := commands.SetRelationCommand{PersonID: args[0], Relation: args[1]}
			if len(args) == 3 {
				c.TargetID = args[2]
			}
			if err := a.send(ctx, c); err != nil {
				return err
			}
			return a.save(ctx)
		},
	}
}

func (a *app) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect <a> <b>",
		Short: "Remove every relation and line between two persons",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			changed, err := bus.SendFor[bool](ctx, a.container.Commands, commands.DisconnectCommand{A: args[0], B: args[1]})
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s and %s were not connected\n", args[0], args[1])
				return nil
			}
			return a.save(ctx)
		},
	}
}

func (a *app) connectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connection <hide|show|line-only|remove-line-only> <a> <b>",
		Short: "Hide, show or draw a plain line between two persons",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			err := a.send(ctx, commands.ToggleConnectionCommand{Mode: args[0], A: args[1], B: args[2]})
			if err != nil {
				return err
			}
			return a.save(ctx)
		},
	}
}

func (a *app) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <x> <y>",
		Short: "Move a person's node",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid x: %w", err)
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid y: %w", err)
			}
			ctx := cmd.Context()
			a.container.Load(ctx)
			if err := a.send(ctx, commands.MoveNodeCommand{PersonID: args[0], X: x, Y: y}); err != nil {
				return err
			}
			return a.save(ctx)
		},
	}
}

func (a *app) shapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shape <tree|solar|grid|grape>",
		Short: "Rearrange every node into a layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a.container.Load(ctx)
			if err := a.send(ctx, commands.ApplyShapeCommand{Shape: args[0]}); err != nil {
				return err
			}
			return a.save(ctx)
		},
	}
}

func (a *app) send(ctx context.Context, cmd bus.Command) error {
	_, err := a.container.Commands.Send(ctx, cmd)
	return err
}

// save writes the tree and fails when the primary write did not land
func (a *app) save(ctx context.Context) error {
	if !a.container.Tree.Save(ctx) {
		return fmt.Errorf("tree could not be saved to %s storage", a.container.Config.Storage.Kind)
	}
	return nil
}

func fullName(name, surname string) string {
	if surname == "" {
		return name
	}
	return name + " " + surname
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"dentaldesk/internal/builder"
	"dentaldesk/internal/ui"
)

var (
	widgetContainer string
	widgetIndex     int
	widgetX         float64
	widgetY         float64
	widgetProps     string
	templateDesc    string
)

const builderPath = "/api/website-builder"

// canvasView mirrors the canvas response
type canvasView struct {
	Widgets  builder.Tree           `json:"widgets"`
	Settings builder.CanvasSettings `json:"settings"`
	Extent   builder.Size           `json:"extent"`
	Bounds   builder.Size           `json:"bounds"`
	CanUndo  bool                   `json:"canUndo"`
	CanRedo  bool                   `json:"canRedo"`
	Dirty    bool                   `json:"dirty"`
}

func builderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "builder",
		Aliases: []string{"site"},
		Short:   "Edit the clinic website",
	}

	stateCmd := &cobra.Command{
		Use:   "state",
		Short: "Show the saved website state",
		Args:  cobra.NoArgs,
		Run:   runBuilderState,
	}

	widgetsCmd := &cobra.Command{
		Use:   "widgets",
		Short: "Show the live canvas widget tree",
		Args:  cobra.NoArgs,
		Run:   runBuilderWidgets,
	}

	typesCmd := &cobra.Command{
		Use:   "types",
		Short: "List widget types",
		Args:  cobra.NoArgs,
		Run:   runBuilderTypes,
	}

	addCmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Add a widget to the canvas or a container",
		Args:  cobra.ExactArgs(1),
		Run:   runBuilderAdd,
	}
	addCmd.Flags().StringVar(&widgetContainer, "container", "", "Container widget ID")
	addCmd.Flags().IntVar(&widgetIndex, "index", builder.End, "Insert position (-1 appends)")
	addCmd.Flags().Float64Var(&widgetX, "x", 0, "Horizontal position")
	addCmd.Flags().Float64Var(&widgetY, "y", 0, "Vertical position")
	addCmd.Flags().StringVar(&widgetProps, "props", "", "JSON props")

	moveCmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a widget to another container or to the root",
		Args:  cobra.ExactArgs(1),
		Run:   runBuilderMove,
	}
	moveCmd.Flags().StringVar(&widgetContainer, "container", "", "Target container ID (empty for the root)")
	moveCmd.Flags().IntVar(&widgetIndex, "index", builder.End, "Insert position (-1 appends)")

	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a widget and its children",
		Args:  cobra.ExactArgs(1),
		Run:   runBuilderRemove,
	}

	undoCmd := &cobra.Command{
		Use:   "undo",
		Short: "Undo the last change",
		Args:  cobra.NoArgs,
		Run:   func(cmd *cobra.Command, args []string) { runHistory("undo") },
	}

	redoCmd := &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone change",
		Args:  cobra.NoArgs,
		Run:   func(cmd *cobra.Command, args []string) { runHistory("redo") },
	}

	saveCmd := &cobra.Command{
		Use:   "save",
		Short: "Persist the canvas",
		Args:  cobra.NoArgs,
		Run:   runBuilderSave,
	}

	cmd.AddCommand(stateCmd, widgetsCmd, typesCmd, addCmd, moveCmd, removeCmd, undoCmd, redoCmd, saveCmd)
	return cmd
}

func templatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage website templates",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		Run:   runTemplatesList,
	}

	applyCmd := &cobra.Command{
		Use:   "apply <id>",
		Short: "Replace the canvas with a template",
		Args:  cobra.ExactArgs(1),
		Run:   runTemplatesApply,
	}

	saveCmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the canvas as a template",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTemplatesSave,
	}
	saveCmd.Flags().StringVar(&templateDesc, "description", "", "Template description")

	cmd.AddCommand(listCmd, applyCmd, saveCmd)
	return cmd
}

// Builder handlers

func runBuilderState(cmd *cobra.Command, args []string) {
	var result struct {
		Data builder.State `json:"data"`
	}
	if err := newClient().call("GET", builderPath+"/state", nil, &result); err != nil {
		fail("get website state", err)
	}

	if outputFmt == "json" {
		printJSON(result.Data)
		return
	}

	fmt.Println(ui.Header("Website"))
	ui.PrintKeyValue("Widgets", fmt.Sprint(builder.Count(result.Data.CanvasWidgets)))
	ui.PrintKeyValue("Templates", fmt.Sprint(len(result.Data.Templates)))
	ui.PrintKeyValue("Background", valueOr(result.Data.CanvasSettings.Background, "default"))
	ui.PrintKeyValue("Alignment", result.Data.CanvasSettings.Alignment)
	fmt.Println()
	printTree(result.Data.CanvasWidgets)
}

func runBuilderWidgets(cmd *cobra.Command, args []string) {
	var canvas canvasView
	if err := newClient().call("GET", builderPath+"/canvas", nil, &canvas); err != nil {
		fail("get canvas", err)
	}
	printCanvas(canvas)
}

func runBuilderTypes(cmd *cobra.Command, args []string) {
	var result struct {
		Types []builder.Spec `json:"types"`
	}
	if err := newClient().call("GET", builderPath+"/widget-types", nil, &result); err != nil {
		fail("list widget types", err)
	}

	if outputFmt == "json" {
		printJSON(result.Types)
		return
	}

	fmt.Println(ui.Header("Widget Types"))
	w := newTable()
	fmt.Fprintln(w, "  TYPE\tLABEL\tCATEGORY\tSIZE\tCONTAINER")
	fmt.Fprintln(w, "  ----\t-----\t--------\t----\t---------")
	for _, s := range result.Types {
		container := ""
		if s.Container {
			container = "yes"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s x %s\t%s\n", s.Type, s.Label, s.Category, s.Width, s.Height, container)
	}
	w.Flush()
}

func runBuilderAdd(cmd *cobra.Command, args []string) {
	req := builder.AddWidgetRequest{
		Type:        builder.WidgetType(args[0]),
		ContainerID: widgetContainer,
	}
	if cmd.Flags().Changed("index") {
		req.Index = &widgetIndex
	}
	if cmd.Flags().Changed("x") {
		req.X = &widgetX
	}
	if cmd.Flags().Changed("y") {
		req.Y = &widgetY
	}
	if widgetProps != "" {
		if err := json.Unmarshal([]byte(widgetProps), &req.Props); err != nil {
			fail("parse props", err)
		}
	}

	var result struct {
		Widget builder.Node `json:"widget"`
	}
	if err := newClient().call("POST", builderPath+"/canvas/widgets", req, &result); err != nil {
		fail("add widget", err)
	}

	if outputFmt == "json" {
		printJSON(result.Widget)
		return
	}
	ui.PrintSuccess("Added %s: %s", result.Widget.Type, result.Widget.ID)
}

func runBuilderMove(cmd *cobra.Command, args []string) {
	body := map[string]interface{}{"containerId": widgetContainer, "index": widgetIndex}
	var canvas canvasView
	if err := newClient().call("POST", builderPath+"/canvas/widgets/"+url.PathEscape(args[0])+"/move", body, &canvas); err != nil {
		fail("move widget", err)
	}

	if outputFmt == "json" {
		printJSON(canvas)
		return
	}
	target := "the page"
	if widgetContainer != "" {
		target = widgetContainer
	}
	ui.PrintSuccess("Moved %s into %s", args[0], target)
}

func runBuilderRemove(cmd *cobra.Command, args []string) {
	if err := newClient().call("DELETE", builderPath+"/canvas/widgets/"+url.PathEscape(args[0]), nil, nil); err != nil {
		fail("remove widget", err)
	}
	ui.PrintSuccess("Removed %s", args[0])
}

func runHistory(action string) {
	var result struct {
		Changed bool       `json:"changed"`
		Canvas  canvasView `json:"canvas"`
	}
	if err := newClient().call("POST", builderPath+"/canvas/"+action, nil, &result); err != nil {
		fail(action, err)
	}

	if outputFmt == "json" {
		printJSON(result)
		return
	}
	if !result.Changed {
		ui.PrintWarning("Nothing to %s", action)
		return
	}
	ui.PrintSuccess("%s done (%d widgets)", strings.ToUpper(action[:1])+action[1:], builder.Count(result.Canvas.Widgets))
}

func runBuilderSave(cmd *cobra.Command, args []string) {
	if err := newClient().call("POST", builderPath+"/canvas/save", nil, nil); err != nil {
		fail("save website", err)
	}
	ui.PrintSuccess("Website saved")
}

// Template handlers

func runTemplatesList(cmd *cobra.Command, args []string) {
	var result struct {
		Templates []builder.TemplateDefinition `json:"templates"`
	}
	if err := newClient().call("GET", builderPath+"/templates", nil, &result); err != nil {
		fail("list templates", err)
	}

	if outputFmt == "json" {
		printJSON(result.Templates)
		return
	}

	fmt.Println(ui.Header("Templates"))
	w := newTable()
	fmt.Fprintln(w, "  ID\tNAME\tWIDGETS\tSOURCE")
	fmt.Fprintln(w, "  --\t----\t-------\t------")
	for _, t := range result.Templates {
		source := "saved"
		if t.BuiltIn {
			source = "built-in"
		}
		fmt.Fprintf(w, "  %s\t%s\t%d\t%s\n", t.ID, t.Name, builder.Count(t.Widgets), ui.Muted(source))
	}
	w.Flush()
}

func runTemplatesApply(cmd *cobra.Command, args []string) {
	var canvas canvasView
	if err := newClient().call("POST", builderPath+"/templates/"+url.PathEscape(args[0])+"/apply", nil, &canvas); err != nil {
		fail("apply template", err)
	}

	if outputFmt == "json" {
		printJSON(canvas)
		return
	}
	ui.PrintSuccess("Applied template %s (%d widgets)", args[0], builder.Count(canvas.Widgets))
	ui.PrintInfo("Run 'dentaldesk builder save' to publish it")
}

func runTemplatesSave(cmd *cobra.Command, args []string) {
	body := map[string]string{"name": strings.Join(args, " "), "description": templateDesc}
	var result struct {
		Template builder.TemplateDefinition `json:"template"`
	}
	if err := newClient().call("POST", builderPath+"/templates", body, &result); err != nil {
		fail("save template", err)
	}

	if outputFmt == "json" {
		printJSON(result.Template)
		return
	}
	ui.PrintSuccess("Saved template %s: %s", result.Template.Name, result.Template.ID)
}

func printCanvas(c canvasView) {
	if outputFmt == "json" {
		printJSON(c)
		return
	}

	fmt.Println(ui.Header("Canvas"))
	ui.PrintKeyValue("Extent", fmt.Sprintf("%.0f x %.0f", c.Extent.Width, c.Extent.Height))
	ui.PrintKeyValue("Bounds", fmt.Sprintf("%.0f x %.0f", c.Bounds.Width, c.Bounds.Height))
	state := "saved"
	if c.Dirty {
		state = "unsaved changes"
	}
	ui.PrintKeyValue("State", state)
	fmt.Println()
	printTree(c.Widgets)
}

func printTree(tree builder.Tree) {
	if len(tree) == 0 {
		fmt.Println("  Empty canvas")
		return
	}
	builder.Walk(tree, func(n *builder.Node, depth int) {
		x, _ := n.Props.Number("x")
		y, _ := n.Props.Number("y")
		label := n.Props.String("text")
		if len(label) > 40 {
			label = label[:37] + "..."
		}
		fmt.Printf("  %s%s %s %s %s\n", strings.Repeat("  ", depth), ui.Bold(string(n.Type)), ui.Muted(n.ID),
			fmt.Sprintf("(%.0f, %.0f)", x, y), label)
	})
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

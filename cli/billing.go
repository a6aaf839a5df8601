package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dentaldesk/internal/models"
	"dentaldesk/internal/ui"
)

var (
	invoicePatient string
	invoiceItems   []string
	invoiceDue     string
	invoiceNotes   string
	invoiceStatus  string
	payMethod      string
	payReference   string

	patientFirst     string
	patientLast      string
	patientEmail     string
	patientPhone     string
	patientInsurance string
)

func invoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invoices",
		Aliases: []string{"invoice"},
		Short:   "Manage invoices",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest first",
		Args:  cobra.NoArgs,
		Run:   runInvoicesList,
	}

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an invoice",
		Args:  cobra.ExactArgs(1),
		Run:   runInvoicesShow,
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invoice",
		Long: "Create an invoice from flags or from a JSON body (--data or stdin).\n" +
			"Items are given as description:quantity:unitPrice, e.g. --item \"Cleaning:1:120\".",
		Args: cobra.NoArgs,
		Run:  runInvoicesCreate,
	}
	createCmd.Flags().StringVar(&invoicePatient, "patient", "", "Patient ID")
	createCmd.Flags().StringArrayVar(&invoiceItems, "item", nil, "Line item description:quantity:unitPrice (repeatable)")
	createCmd.Flags().StringVar(&invoiceDue, "due", "", "Due date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&invoiceNotes, "notes", "", "Notes")
	createCmd.Flags().StringVar(&invoiceStatus, "status", "", "Initial status (Paid, Unpaid, Partially Paid, Overdue)")
	createCmd.Flags().StringVarP(&dataFlag, "data", "d", "", "JSON invoice body")

	payCmd := &cobra.Command{
		Use:   "pay <id> <amount>",
		Short: "Record a payment",
		Args:  cobra.ExactArgs(2),
		Run:   runInvoicesPay,
	}
	payCmd.Flags().StringVar(&payMethod, "method", "cash", "Payment method (cash, card, transfer, insurance)")
	payCmd.Flags().StringVar(&payReference, "reference", "", "Payment reference")

	creditCmd := &cobra.Command{
		Use:   "credit <id> <claim-id>",
		Short: "Apply an approved insurance claim",
		Args:  cobra.ExactArgs(2),
		Run:   runInvoicesCredit,
	}

	fromTreatmentCmd := &cobra.Command{
		Use:   "from-treatment <treatment-id>",
		Short: "Invoice a completed treatment",
		Args:  cobra.ExactArgs(1),
		Run:   runInvoicesFromTreatment,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an invoice",
		Args:  cobra.ExactArgs(1),
		Run:   runInvoicesDelete,
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show billed, collected and outstanding totals",
		Args:  cobra.NoArgs,
		Run:   runInvoicesSummary,
	}

	cmd.AddCommand(listCmd, showCmd, createCmd, payCmd, creditCmd, fromTreatmentCmd, deleteCmd, summaryCmd)
	return cmd
}

func patientsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patients",
		Aliases: []string{"patient"},
		Short:   "Manage patients",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List patients",
		Args:  cobra.NoArgs,
		Run:   runPatientsList,
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a patient",
		Args:  cobra.NoArgs,
		Run:   runPatientsCreate,
	}
	createCmd.Flags().StringVar(&patientFirst, "first", "", "First name")
	createCmd.Flags().StringVar(&patientLast, "last", "", "Last name")
	createCmd.Flags().StringVar(&patientEmail, "email", "", "Email")
	createCmd.Flags().StringVar(&patientPhone, "phone", "", "Phone")
	createCmd.Flags().StringVar(&patientInsurance, "insurance", "", "Insurance provider")

	cmd.AddCommand(listCmd, createCmd)
	return cmd
}

// Invoice handlers

func runInvoicesList(cmd *cobra.Command, args []string) {
	var result struct {
		Invoices []models.Invoice `json:"invoices"`
	}
	if err := newClient().call("GET", "/api/invoices", nil, &result); err != nil {
		fail("list invoices", err)
	}

	if outputFmt == "json" {
		printJSON(result.Invoices)
		return
	}

	fmt.Println(ui.Header("Invoices"))
	if len(result.Invoices) == 0 {
		fmt.Println("  No invoices found")
		return
	}

	w := newTable()
	fmt.Fprintln(w, "  NUMBER\tDATE\tPATIENT\tTOTAL\tPAID\tSTATUS\tID")
	fmt.Fprintln(w, "  ------\t----\t-------\t-----\t----\t------\t--")
	for _, inv := range result.Invoices {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ui.Highlight(inv.Number), inv.Date.Format("2006-01-02"), patientLabel(inv),
			ui.Money(inv.TotalAmount), ui.Money(inv.AmountPaid), ui.Status(string(inv.Status)), ui.Muted(inv.ID))
	}
	w.Flush()
}

func runInvoicesShow(cmd *cobra.Command, args []string) {
	var result struct {
		Invoice models.Invoice `json:"invoice"`
	}
	if err := newClient().call("GET", "/api/invoices/"+url.PathEscape(args[0]), nil, &result); err != nil {
		fail("get invoice", err)
	}
	printInvoice(result.Invoice)
}

func runInvoicesCreate(cmd *cobra.Command, args []string) {
	var body interface{}
	if invoicePatient == "" && len(invoiceItems) == 0 {
		data, err := parseData()
		if err != nil {
			fail("parse data", err)
		}
		body = data
	} else {
		req, err := buildCreateRequest()
		if err != nil {
			fail("parse flags", err)
		}
		body = req
	}

	var result struct {
		Invoice models.Invoice `json:"invoice"`
	}
	if err := newClient().call("POST", "/api/invoices", body, &result); err != nil {
		fail("create invoice", err)
	}

	if outputFmt == "json" {
		printJSON(result.Invoice)
		return
	}
	ui.PrintSuccess("Created invoice %s for %s (%s)", result.Invoice.Number, patientLabel(result.Invoice), ui.Money(result.Invoice.TotalAmount))
}

func buildCreateRequest() (models.CreateInvoiceRequest, error) {
	req := models.CreateInvoiceRequest{
		PatientID: invoicePatient,
		Notes:     invoiceNotes,
		Status:    models.InvoiceStatus(invoiceStatus),
	}
	for _, raw := range invoiceItems {
		item, err := parseItem(raw)
		if err != nil {
			return req, err
		}
		req.Items = append(req.Items, item)
	}
	if invoiceDue != "" {
		due, err := time.Parse("2006-01-02", invoiceDue)
		if err != nil {
			return req, fmt.Errorf("invalid due date %q: %w", invoiceDue, err)
		}
		req.DueDate = &due
	}
	return req, nil
}

// parseItem reads description[:quantity[:unitPrice]]. A two-part item is
// description:unitPrice with quantity 1.
func parseItem(raw string) (models.LineItem, error) {
	parts := strings.Split(raw, ":")
	item := models.LineItem{Description: strings.TrimSpace(parts[0]), Quantity: 1}

	number := func(s string) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid item %q: %w", raw, err)
		}
		return v, nil
	}

	var err error
	switch len(parts) {
	case 1:
	case 2:
		item.UnitPrice, err = number(parts[1])
	case 3:
		if item.Quantity, err = number(parts[1]); err == nil {
			item.UnitPrice, err = number(parts[2])
		}
	default:
		err = fmt.Errorf("invalid item %q: want description:quantity:unitPrice", raw)
	}
	return item, err
}

func runInvoicesPay(cmd *cobra.Command, args []string) {
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fail("parse amount", err)
	}

	var result struct {
		Invoice models.Invoice `json:"invoice"`
	}
	req := models.PaymentRequest{Amount: amount, Method: payMethod, Reference: payReference}
	if err := newClient().call("POST", "/api/invoices/"+url.PathEscape(args[0])+"/payments", req, &result); err != nil {
		fail("record payment", err)
	}

	if outputFmt == "json" {
		printJSON(result.Invoice)
		return
	}
	inv := result.Invoice
	ui.PrintSuccess("Recorded %s on %s, balance %s (%s)", ui.Money(amount), inv.Number, ui.Money(inv.Balance()), ui.Status(string(inv.Status)))
}

func runInvoicesCredit(cmd *cobra.Command, args []string) {
	var result struct {
		Invoice models.Invoice `json:"invoice"`
	}
	body := map[string]string{"claimId": args[1]}
	if err := newClient().call("POST", "/api/invoices/"+url.PathEscape(args[0])+"/insurance-credit", body, &result); err != nil {
		fail("apply insurance credit", err)
	}

	if outputFmt == "json" {
		printJSON(result.Invoice)
		return
	}
	inv := result.Invoice
	ui.PrintSuccess("Applied claim %s to %s, balance %s (%s)", args[1], inv.Number, ui.Money(inv.Balance()), ui.Status(string(inv.Status)))
}

func runInvoicesFromTreatment(cmd *cobra.Command, args []string) {
	var result struct {
		Invoice models.Invoice `json:"invoice"`
	}
	body := map[string]string{"treatmentId": args[0]}
	if err := newClient().call("POST", "/api/invoices/from-treatment", body, &result); err != nil {
		fail("invoice treatment", err)
	}

	if outputFmt == "json" {
		printJSON(result.Invoice)
		return
	}
	ui.PrintSuccess("Created invoice %s for %s (%s)", result.Invoice.Number, patientLabel(result.Invoice), ui.Money(result.Invoice.TotalAmount))
}

func runInvoicesDelete(cmd *cobra.Command, args []string) {
	if err := newClient().call("DELETE", "/api/invoices/"+url.PathEscape(args[0]), nil, nil); err != nil {
		fail("delete invoice", err)
	}
	ui.PrintSuccess("Deleted invoice %s", args[0])
}

func runInvoicesSummary(cmd *cobra.Command, args []string) {
	var summary models.InvoiceSummary
	if err := newClient().call("GET", "/api/invoices/summary", nil, &summary); err != nil {
		fail("get summary", err)
	}

	if outputFmt == "json" {
		printJSON(summary)
		return
	}

	fmt.Println(ui.Header("Billing Summary"))
	ui.PrintKeyValue("Invoices", strconv.Itoa(summary.Count))
	ui.PrintKeyValue("Billed", ui.Money(summary.Billed))
	ui.PrintKeyValue("Collected", ui.Money(summary.Collected))
	ui.PrintKeyValue("Outstanding", ui.Money(summary.Outstanding))
	for _, status := range []models.InvoiceStatus{models.StatusPaid, models.StatusPartiallyPaid, models.StatusUnpaid, models.StatusOverdue} {
		if n := summary.ByStatus[status]; n > 0 {
			fmt.Printf("  %s %d\n", ui.Status(string(status)), n)
		}
	}
}

func printInvoice(inv models.Invoice) {
	if outputFmt == "json" {
		printJSON(inv)
		return
	}

	fmt.Println(ui.Header("Invoice " + inv.Number))
	ui.PrintKeyValue("ID", inv.ID)
	ui.PrintKeyValue("Patient", patientLabel(inv))
	ui.PrintKeyValue("Date", inv.Date.Format("2006-01-02"))
	if inv.DueDate != nil {
		ui.PrintKeyValue("Due", inv.DueDate.Format("2006-01-02"))
	}
	ui.PrintKeyValue("Status", ui.Status(string(inv.Status)))
	if inv.Notes != "" {
		ui.PrintKeyValue("Notes", inv.Notes)
	}
	fmt.Println()

	w := newTable()
	fmt.Fprintln(w, "  DESCRIPTION\tQTY\tUNIT\tAMOUNT")
	fmt.Fprintln(w, "  -----------\t---\t----\t------")
	for _, item := range inv.Items {
		fmt.Fprintf(w, "  %s\t%g\t%s\t%s\n", item.Description, item.Quantity, ui.Money(item.UnitPrice), ui.Money(item.Amount))
	}
	w.Flush()
	fmt.Println()

	ui.PrintKeyValue("Total", ui.Money(inv.TotalAmount))
	ui.PrintKeyValue("Paid", ui.Money(inv.AmountPaid))
	ui.PrintKeyValue("Balance", ui.Money(inv.Balance()))

	if len(inv.Payments) > 0 {
		fmt.Println()
		fmt.Println(ui.Header("Payments"))
		for _, p := range inv.Payments {
			ref := ""
			if p.Reference != "" {
				ref = " " + ui.Muted(p.Reference)
			}
			fmt.Printf("  %s  %s  %s%s\n", p.Date.Format("2006-01-02"), ui.Money(p.Amount), p.Method, ref)
		}
	}
}

func patientLabel(inv models.Invoice) string {
	if inv.PatientName != "" {
		return inv.PatientName
	}
	return inv.PatientID
}

// Patient handlers

func runPatientsList(cmd *cobra.Command, args []string) {
	var result struct {
		Patients []models.Patient `json:"patients"`
	}
	if err := newClient().call("GET", "/api/patients", nil, &result); err != nil {
		fail("list patients", err)
	}

	if outputFmt == "json" {
		printJSON(result.Patients)
		return
	}

	fmt.Println(ui.Header("Patients"))
	if len(result.Patients) == 0 {
		fmt.Println("  No patients found")
		return
	}

	w := newTable()
	fmt.Fprintln(w, "  NAME\tPHONE\tEMAIL\tINSURANCE\tID")
	fmt.Fprintln(w, "  ----\t-----\t-----\t---------\t--")
	for _, p := range result.Patients {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", p.FullName(), p.Phone, p.Email, p.InsuranceProvider, ui.Muted(p.ID))
	}
	w.Flush()
}

func runPatientsCreate(cmd *cobra.Command, args []string) {
	p := models.Patient{
		FirstName:         patientFirst,
		LastName:          patientLast,
		Email:             patientEmail,
		Phone:             patientPhone,
		InsuranceProvider: patientInsurance,
	}

	var result struct {
		Patient models.Patient `json:"patient"`
	}
	if err := newClient().call("POST", "/api/patients", p, &result); err != nil {
		fail("create patient", err)
	}

	if outputFmt == "json" {
		printJSON(result.Patient)
		return
	}
	ui.PrintSuccess("Created patient %s: %s", result.Patient.FullName(), result.Patient.ID)
}

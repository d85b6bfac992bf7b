package main

import (
	"fmt"
	"io"
	"net"
	"text/tabwriter"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"

	"github.com/haukened/rr-rpz/internal/dns/common/utils"
	"github.com/haukened/rr-rpz/internal/dns/services/rpz"
)

func newLoadCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load all zones and print trigger counts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, app *Application, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tZONE\tORIGIN\tSERIAL\tQNAME\tNSDNAME\tCLIENT-IP\tNSIP\tRESPONSE-IP")
			for i, lz := range app.loaded {
				s := lz.zone.Stats()
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
					i, lz.key, lz.zone.Domain(), lz.zone.Serial(),
					s.QName, s.NSDName, s.ClientIP, s.NSIP, s.ResponseIP)
			}
			return tw.Flush()
		}),
	}
}

func newDumpCmd(withApp appRunner) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "dump [zone]",
		Short: "Print zones in RPZ zone-file form",
		Long: `Print one zone, selected by name or origin, or every zone in priority order.
With --save the dumps are also written to the snapshot store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			targets := app.loaded
			if len(args) == 1 {
				lz, ok := app.find(args[0])
				if !ok {
					return fmt.Errorf("no zone named %q", args[0])
				}
				targets = []loadedZone{lz}
			}

			for _, lz := range targets {
				if err := lz.zone.Dump(cmd.OutOrStdout()); err != nil {
					return err
				}
				if save {
					if err := app.SaveSnapshot(lz.key, lz.zone); err != nil {
						return fmt.Errorf("save snapshot %s: %w", lz.key, err)
					}
				}
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&save, "save", false, "Also store each dump in the snapshot store")
	return cmd
}

func newQueryCmd(withApp appRunner) *cobra.Command {
	var (
		client  string
		discard []string
	)
	cmd := &cobra.Command{
		Use:   "query <qname>",
		Short: "Show the policy a query for qname would hit",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			var ip net.IP
			if client != "" {
				if ip = net.ParseIP(client); ip == nil {
					return fmt.Errorf("invalid client address %q", client)
				}
			}
			qname := utils.CanonicalDNSName(args[0])
			p := app.filter.QueryPolicy(qname, ip, rpz.NewDiscarded(discard...))
			return printPolicy(cmd.OutOrStdout(), qname, p, qname)
		}),
	}
	cmd.Flags().StringVar(&client, "client", "", "Client address to check against client-ip triggers")
	cmd.Flags().StringSliceVar(&discard, "discard", nil, "Zone names to skip (repeatable)")
	return cmd
}

func newNSCmd(withApp appRunner) *cobra.Command {
	var discard []string
	cmd := &cobra.Command{
		Use:   "ns <name>",
		Short: "Show the policy a name server called name would hit",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			name := utils.CanonicalDNSName(args[0])
			p := app.filter.NSNamePolicy(name, rpz.NewDiscarded(discard...))
			return printPolicy(cmd.OutOrStdout(), name, p, name)
		}),
	}
	cmd.Flags().StringSliceVar(&discard, "discard", nil, "Zone names to skip (repeatable)")
	return cmd
}

func newNSIPCmd(withApp appRunner) *cobra.Command {
	var (
		qname   string
		discard []string
	)
	cmd := &cobra.Command{
		Use:   "nsip <ip>",
		Short: "Show the policy a name server at ip would hit",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			ip := net.ParseIP(args[0])
			if ip == nil {
				return fmt.Errorf("invalid address %q", args[0])
			}
			p := app.filter.NSIPPolicy(ip, rpz.NewDiscarded(discard...))
			return printPolicy(cmd.OutOrStdout(), ip.String(), p, utils.CanonicalDNSName(qname))
		}),
	}
	cmd.Flags().StringVar(&qname, "qname", ".", "Query name the resulting record is written for")
	cmd.Flags().StringSliceVar(&discard, "discard", nil, "Zone names to skip (repeatable)")
	return cmd
}

func newAnswerCmd(withApp appRunner) *cobra.Command {
	var (
		qname   string
		discard []string
	)
	cmd := &cobra.Command{
		Use:   "answer <ip>...",
		Short: "Show the policy an answer carrying these addresses would hit",
		Long: `Build A and AAAA records for the given addresses, in order, and check them
against response-ip triggers. The first address with a match decides.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, app *Application, args []string) error {
			owner := utils.CanonicalDNSName(qname)
			answers, err := addressRecords(owner, args)
			if err != nil {
				return err
			}
			p := app.filter.PostPolicy(answers, rpz.NewDiscarded(discard...))
			return printPolicy(cmd.OutOrStdout(), owner, p, owner)
		}),
	}
	cmd.Flags().StringVar(&qname, "qname", ".", "Owner of the answer records")
	cmd.Flags().StringSliceVar(&discard, "discard", nil, "Zone names to skip (repeatable)")
	return cmd
}

func addressRecords(owner string, addrs []string) ([]dns.RR, error) {
	out := make([]dns.RR, 0, len(addrs))
	for _, a := range addrs {
		ip := net.ParseIP(a)
		if ip == nil {
			return nil, fmt.Errorf("invalid address %q", a)
		}
		hdr := dns.RR_Header{Name: owner, Class: dns.ClassINET, Ttl: 0}
		if v4 := ip.To4(); v4 != nil {
			hdr.Rrtype = dns.TypeA
			out = append(out, &dns.A{Hdr: hdr, A: v4})
			continue
		}
		hdr.Rrtype = dns.TypeAAAA
		out = append(out, &dns.AAAA{Hdr: hdr, AAAA: ip})
	}
	return out, nil
}

// printPolicy writes the match summary and, on a hit, the record served at qname.
func printPolicy(w io.Writer, subject string, p rpz.Policy, qname string) error {
	if !p.IsHit() {
		_, err := fmt.Fprintf(w, "%s\tno match\n", subject)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\t%s\n", subject, p); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, p.Record(qname).String())
	return err
}

package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/wavefront/tracer"
	"github.com/achilleasa/wavefront/tracer/opencl/device"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

var ListDeviceFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "local-size",
		Value: "64x1",
		Usage: "local work size used to check device eligibility",
	},
	cli.IntFlag{
		Name:  "max-closure",
		Value: 16,
		Usage: "max shader closures per ray used to check device eligibility",
	},
}

// List available opencl devices and whether they can run the split kernels.
func ListDevices(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	localSize, err := parseLocalSize(ctx.String("local-size"))
	if err != nil {
		return err
	}
	req := deviceRequirements(localSize, tracer.RequestedFeatures{MaxClosure: ctx.Int("max-closure")})

	platforms, err := device.GetPlatformInfo()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\nSystem provides %d opencl platform(s); eligibility checked for local size %dx%d and %d bytes per ray:\n\n", len(platforms), req.LocalSize[0], req.LocalSize[1], req.BytesPerRay))

	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Platform", "Version", "Device", "Type", "Speed (GFlops)", "Memory (MiB)", "Max work group", "Eligible"})
	for pIdx, platformInfo := range platforms {
		for _, dev := range platformInfo.Devices {
			eligible := "yes"
			if err := req.Check(dev); err != nil {
				eligible = "no"
				logger.Infof("device %s: %v", dev.Name, err)
			}
			table.Append([]string{
				fmt.Sprintf("%02d %s", pIdx, platformInfo.Name),
				platformInfo.Version,
				dev.Name,
				dev.Type.String(),
				fmt.Sprintf("%d", dev.Speed),
				fmt.Sprintf("%d", dev.MemorySize>>20),
				fmt.Sprintf("%d", dev.MaxWorkGroupSize),
				eligible,
			})
		}
	}
	table.Render()

	logger.Notice(buf.String())
	return nil
}

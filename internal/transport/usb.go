// internal/transport/usb.go
package transport

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"print-service/internal/model"
)

// USB printer interface class.
// Reference: http://www.usb.org/developers/defined_class
const ifaceClassPrinter = 0x07

// USBTransport drives a printer on the USB bus through gousb, either by
// explicit vendor/product ID or by printer-class autodetection.
type USBTransport struct {
	*pump
	dest   model.Destination
	usbCtx *gousb.Context
	device *gousb.Device
	iface  *gousb.Interface
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint
}

// NewUSBTransport creates a transport for a USB bus destination.
func NewUSBTransport(dest model.Destination, logger *zap.Logger) *USBTransport {
	return &USBTransport{
		pump: newPump(logger.With(
			zap.String("transport", "usb"),
			zap.Uint16("vendor_id", dest.VendorID),
			zap.Uint16("product_id", dest.ProductID),
		)),
		dest: dest,
	}
}

// Open finds the device, claims its printer interface and resolves the bulk
// endpoints.
func (t *USBTransport) Open(ctx context.Context) error {
	t.usbCtx = gousb.NewContext()

	device, err := t.findDevice()
	if err != nil {
		t.usbCtx.Close()
		t.usbCtx = nil
		return err
	}
	if runtime.GOOS == "linux" {
		device.SetAutoDetach(true)
	}

	iface, out, in, err := claimPrinterInterface(device)
	if err != nil {
		device.Close()
		t.usbCtx.Close()
		t.usbCtx = nil
		return err
	}

	t.device = device
	t.iface = iface
	t.out = out
	t.in = in
	t.closeFn = t.release
	go t.writeLoop(out)
	if in != nil {
		go t.readLoop(in)
	}

	t.logger.Info("USB device opened")
	return nil
}

func (t *USBTransport) Close() error {
	return t.close()
}

func (t *USBTransport) release() error {
	if t.iface != nil {
		t.iface.Close()
		t.iface = nil
	}
	var errs []error
	if t.device != nil {
		if err := t.device.Close(); err != nil {
			errs = append(errs, err)
		}
		t.device = nil
	}
	if t.usbCtx != nil {
		if err := t.usbCtx.Close(); err != nil {
			errs = append(errs, err)
		}
		t.usbCtx = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("USB close errors: %v", errs)
	}
	return nil
}

// findDevice opens the device by VID/PID when given, otherwise scans the bus
// for the first printer-class device.
func (t *USBTransport) findDevice() (*gousb.Device, error) {
	if t.dest.VendorID != 0 || t.dest.ProductID != 0 {
		device, err := t.usbCtx.OpenDeviceWithVIDPID(
			gousb.ID(t.dest.VendorID), gousb.ID(t.dest.ProductID))
		if err != nil {
			return nil, fmt.Errorf("failed to open USB device: %w", err)
		}
		if device == nil {
			return nil, fmt.Errorf("USB device not found (VID: %04X, PID: %04X)",
				t.dest.VendorID, t.dest.ProductID)
		}
		return device, nil
	}

	devices, err := t.usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool { return true })
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	var printer *gousb.Device
	for _, dev := range devices {
		if printer == nil && isPrinter(dev) {
			printer = dev
			continue
		}
		dev.Close()
	}
	if printer == nil {
		return nil, errors.New("cannot find a USB printer")
	}
	return printer, nil
}

// isPrinter reports whether any interface of the device's active
// configuration is printer class.
func isPrinter(dev *gousb.Device) bool {
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return false
	}
	defer cfg.Close()

	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == ifaceClassPrinter {
				return true
			}
		}
	}
	return false
}

// claimPrinterInterface claims the first printer-class interface and resolves
// its bulk endpoints. A missing in endpoint is tolerated; some printers are
// write-only on USB.
func claimPrinterInterface(dev *gousb.Device) (*gousb.Interface, *gousb.OutEndpoint, *gousb.InEndpoint, error) {
	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get active config: %w", err)
	}
	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get config: %w", err)
	}

	ifaceNum := -1
	for _, iface := range cfg.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class == ifaceClassPrinter {
				ifaceNum = iface.Number
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		cfg.Close()
		return nil, nil, nil, errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		cfg.Close()
		return nil, nil, nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	var out *gousb.OutEndpoint
	var in *gousb.InEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.Direction == gousb.EndpointDirectionOut && out == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				out = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && in == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				in = ep
			}
		}
	}
	if out == nil {
		iface.Close()
		return nil, nil, nil, errors.New("cannot find output endpoint")
	}
	return iface, out, in, nil
}

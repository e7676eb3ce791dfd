/*
Package iothub implements the device side of the IoT hub MQTT dialect.

A device connects with its device id as the MQTT client id and uses a fixed set of
topics for direct methods and device twin updates:

	$iothub/methods/POST/{method}/?$rid={rid}                  hub -> device, method request
	$iothub/methods/res/{status}/?$rid={rid}                   device -> hub, method response
	$iothub/twin/PATCH/properties/reported/?$rid={rid}         device -> hub, reported properties
	$iothub/twin/res/{status}/?$rid={rid}&$version={version}   hub -> device, twin operation result

The package only parses and formats; the MQTT transport lives in pkg/mqtt.
*/
package iothub

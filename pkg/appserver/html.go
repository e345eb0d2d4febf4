package appserver

import "html/template"

type document struct {
	Title   string
	Route   string
	Body    template.HTML
	Context template.JS
}

// documentTemplate is the shell every route document is rendered into. The
// app context and runtime load in <head> so inline route scripts can use
// window.app while the body is parsed.
var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{- if .Route}}
<script id="__app_context" type="application/json">{{.Context}}</script>
<script src="/build/runtime.js"></script>
{{- end}}
</head>
<body>
<div id="root" data-route="{{.Route}}">{{.Body}}</div>
</body>
</html>
`))

// RuntimeJS is the client runtime exposed to route scripts as window.app.
//
//	app.useLoaderData()  loader data of the current route
//	app.useParams()      URL params of the current route
//	app.useFetcher()     fetcher: {state, data, error, load(href), subscribe(fn)}
//
// fetcher.load(href) requests href?_data=<routeId>. Error responses are
// stored on fetcher.error and logged with console.error(body), so the
// first console argument carries the response status.
const RuntimeJS = `(function () {
  "use strict";

  var context = null;

  function getContext() {
    if (context === null) {
      var el = document.getElementById("__app_context");
      context = el ? JSON.parse(el.textContent) : {};
    }
    return context;
  }

  function dataURL(href) {
    var url = new URL(href, window.location.href);
    url.searchParams.set("_data", getContext().routeId || "");
    return url.toString();
  }

  function readBody(res) {
    return res.text().then(function (text) {
      if (!text) {
        return null;
      }
      try {
        return JSON.parse(text);
      } catch (e) {
        return text;
      }
    });
  }

  function toError(res, body) {
    if (body && typeof body === "object" && typeof body.status === "number") {
      return body;
    }
    return {
      status: res.status,
      statusText: res.statusText,
      message: typeof body === "string" ? body : "Request failed"
    };
  }

  function createFetcher() {
    var listeners = [];
    var fetcher = { state: "idle", data: undefined, error: undefined };

    function notify() {
      listeners.slice().forEach(function (fn) {
        try {
          fn(fetcher);
        } catch (e) {
          console.error(e);
        }
      });
    }

    fetcher.subscribe = function (fn) {
      listeners.push(fn);
      return function () {
        var i = listeners.indexOf(fn);
        if (i >= 0) {
          listeners.splice(i, 1);
        }
      };
    };

    fetcher.load = function (href) {
      fetcher.state = "loading";
      notify();
      return fetch(dataURL(href), { headers: { Accept: "application/json" } })
        .then(function (res) {
          return readBody(res).then(function (body) {
            if (!res.ok) {
              throw toError(res, body);
            }
            return body;
          });
        })
        .then(
          function (data) {
            fetcher.data = data;
            fetcher.error = undefined;
          },
          function (err) {
            if (!err || typeof err.status !== "number") {
              err = { status: 0, statusText: "", message: String(err) };
            }
            fetcher.error = err;
            console.error(err);
          }
        )
        .then(function () {
          fetcher.state = "idle";
          notify();
          return fetcher;
        });
    };

    return fetcher;
  }

  window.app = {
    useLoaderData: function () {
      return getContext().loaderData;
    },
    useParams: function () {
      return getContext().params || {};
    },
    useFetcher: createFetcher,
    manifest: function () {
      return getContext().manifest;
    }
  };
})();
`
